package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// RawListingRecord is one listing as returned by the harvest API. Nested
// blocks the pipeline reads field-by-field are typed; loosely structured
// blocks stay raw and are stored as opaque JSON text.
type RawListingRecord struct {
	PropertyID string `json:"property_id"`
	MLS        string `json:"mls"`
	MLSID      string `json:"mls_id"`
	MLSStatus  string `json:"mls_status"`
	Status     string `json:"status"`

	ListPrice              float64 `json:"list_price"`
	ListPriceMin           float64 `json:"list_price_min"`
	ListPriceMax           float64 `json:"list_price_max"`
	SoldPrice              float64 `json:"sold_price"`
	LastSoldPrice          float64 `json:"last_sold_price"`
	EstimatedMonthlyRental float64 `json:"estimated_monthly_rental"`
	HOAFee                 float64 `json:"hoa_fee"`

	ListDate     string  `json:"list_date"`
	PendingDate  string  `json:"pending_date"`
	LastSoldDate string  `json:"last_sold_date"`
	DaysOnMLS    float64 `json:"days_on_mls"`

	PropertyURL  string     `json:"property_url"`
	County       string     `json:"county"`
	Latitude     float64    `json:"latitude"`
	Longitude    float64    `json:"longitude"`
	FIPSCode     FlexString `json:"fips_code"`
	ParcelNumber FlexString `json:"parcel_number"`

	Address     *RawAddress     `json:"address"`
	Description *RawDescription `json:"description"`
	Advertisers *RawAdvertisers `json:"advertisers"`
	TaxRecord   *RawTaxRecord   `json:"tax_record"`
	Flags       *RawFlags       `json:"flags"`

	Terms            json.RawMessage `json:"terms"`
	Neighborhoods    json.RawMessage `json:"neighborhoods"`
	Parking          json.RawMessage `json:"parking"`
	PetPolicy        json.RawMessage `json:"pet_policy"`
	OpenHouses       json.RawMessage `json:"open_houses"`
	Units            json.RawMessage `json:"units"`
	CurrentEstimates json.RawMessage `json:"current_estimates"`

	Estimates  *RawEstimates  `json:"estimates"`
	Popularity *RawPopularity `json:"popularity"`

	TaxHistory    []RawTaxEntry `json:"tax_history"`
	Details       []RawFeature  `json:"details"`
	Photos        []RawPhoto    `json:"photos"`
	Tags          []string      `json:"tags"`
	NearbySchools []string      `json:"nearby_schools"`
}

// Normalize replaces absent nested blocks with empty values so downstream
// code reads fields without nil checks. Safe to call more than once.
func (r *RawListingRecord) Normalize() {
	if r.Address == nil {
		r.Address = &RawAddress{}
	}
	if r.Description == nil {
		r.Description = &RawDescription{}
	}
	if r.Advertisers == nil {
		r.Advertisers = &RawAdvertisers{}
	}
	if r.Advertisers.Agent == nil {
		r.Advertisers.Agent = &RawAgent{}
	}
	if r.Advertisers.Broker == nil {
		r.Advertisers.Broker = &RawParty{}
	}
	if r.Advertisers.Office == nil {
		r.Advertisers.Office = &RawOffice{}
	}
	if r.TaxRecord == nil {
		r.TaxRecord = &RawTaxRecord{}
	}
	if r.Flags == nil {
		r.Flags = &RawFlags{}
	}
}

type RawAddress struct {
	Street           string     `json:"street"`
	StreetNumber     string     `json:"street_number"`
	StreetDirection  string     `json:"street_direction"`
	StreetName       string     `json:"street_name"`
	StreetSuffix     string     `json:"street_suffix"`
	FullLine         string     `json:"full_line"`
	Unit             string     `json:"unit"`
	City             string     `json:"city"`
	State            string     `json:"state"`
	Zip              FlexString `json:"zip"`
	FormattedAddress string     `json:"formatted_address"`
}

type RawDescription struct {
	Name      string   `json:"name"`
	Text      string   `json:"text"`
	Style     string   `json:"style"`
	Beds      float64  `json:"beds"`
	BathsFull float64  `json:"baths_full"`
	BathsHalf float64  `json:"baths_half"`
	SqFt      float64  `json:"sqft"`
	LotSqFt   float64  `json:"lot_sqft"`
	YearBuilt float64  `json:"year_built"`
	Stories   float64  `json:"stories"`
	Garage    float64  `json:"garage"`
	AltPhotos []string `json:"alt_photos"`
}

type RawAdvertisers struct {
	Agent  *RawAgent  `json:"agent"`
	Broker *RawParty  `json:"broker"`
	Office *RawOffice `json:"office"`
}

type RawAgent struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	UUID         string     `json:"uuid"`
	StateLicense FlexString `json:"state_license"`
	Phones       []RawPhone `json:"phones"`
}

type RawParty struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

type RawOffice struct {
	Name   string     `json:"name"`
	Email  string     `json:"email"`
	UUID   string     `json:"uuid"`
	Phones []RawPhone `json:"phones"`
}

type RawPhone struct {
	Number string `json:"number"`
	Type   string `json:"type"`
}

// FirstPhone returns the first phone number in the list, or "".
func FirstPhone(phones []RawPhone) string {
	if len(phones) == 0 {
		return ""
	}
	return phones[0].Number
}

type RawTaxRecord struct {
	APN            FlexString `json:"apn"`
	CLID           FlexString `json:"cl_id"`
	LastUpdateDate string     `json:"last_update_date"`
	PublicRecordID FlexString `json:"public_record_id"`
	TaxParcelID    FlexString `json:"tax_parcel_id"`
}

type RawFlags struct {
	IsComingSoon      bool `json:"is_coming_soon"`
	IsContingent      bool `json:"is_contingent"`
	IsForeclosure     bool `json:"is_foreclosure"`
	IsNewConstruction bool `json:"is_new_construction"`
	IsNewListing      bool `json:"is_new_listing"`
	IsPending         bool `json:"is_pending"`
	IsPriceReduced    bool `json:"is_price_reduced"`
}

// RawEstimates keeps the original bytes for opaque storage alongside the
// parsed current_values the estimate upserter walks.
type RawEstimates struct {
	CurrentValues []RawEstimate

	raw json.RawMessage
}

func (e *RawEstimates) UnmarshalJSON(data []byte) error {
	e.raw = append(e.raw[:0], data...)
	var wire struct {
		CurrentValues []RawEstimate `json:"current_values"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	e.CurrentValues = wire.CurrentValues
	return nil
}

// Raw returns the estimates block exactly as received.
func (e *RawEstimates) Raw() json.RawMessage {
	if e == nil {
		return nil
	}
	return e.raw
}

type RawEstimate struct {
	Date            string            `json:"date"`
	Estimate        float64           `json:"estimate"`
	EstimateHigh    float64           `json:"estimate_high"`
	EstimateLow     float64           `json:"estimate_low"`
	IsBestHomeValue bool              `json:"is_best_home_value"`
	Source          RawEstimateSource `json:"source"`
}

type RawEstimateSource struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type RawPopularity struct {
	Periods []RawPopularityPeriod `json:"periods"`
}

type RawPopularityPeriod struct {
	LastNDays       int     `json:"last_n_days"`
	ViewsTotal      int     `json:"views_total"`
	ClicksTotal     int     `json:"clicks_total"`
	SavesTotal      int     `json:"saves_total"`
	SharesTotal     int     `json:"shares_total"`
	LeadsTotal      int     `json:"leads_total"`
	DwellTimeMean   float64 `json:"dwell_time_mean"`
	DwellTimeMedian float64 `json:"dwell_time_median"`
}

type RawTaxEntry struct {
	Year         int            `json:"year"`
	Tax          float64        `json:"tax"`
	AssessedYear *int           `json:"assessed_year"`
	Value        float64        `json:"value"`
	Assessment   *RawAssessment `json:"assessment"`
	Appraisal    *float64       `json:"appraisal"`
	Market       *float64       `json:"market"`
}

type RawAssessment struct {
	Total    float64 `json:"total"`
	Building float64 `json:"building"`
	Land     float64 `json:"land"`
}

type RawFeature struct {
	Category       string   `json:"category"`
	ParentCategory string   `json:"parent_category"`
	Text           []string `json:"text"`
}

// RawPhoto tolerates the shapes the harvest API has been seen to emit:
// an object with href/title/tags, a bare URL string, or an array of
// [href, tags].
type RawPhoto struct {
	Href  string
	Title string
	Tags  []RawPhotoTag
}

func (p *RawPhoto) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	switch trimmed[0] {
	case '"':
		return json.Unmarshal(trimmed, &p.Href)
	case '{':
		var wire struct {
			Href  string        `json:"href"`
			URL   string        `json:"url"`
			Title string        `json:"title"`
			Tags  []RawPhotoTag `json:"tags"`
		}
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return err
		}
		p.Href = wire.Href
		if p.Href == "" {
			p.Href = wire.URL
		}
		p.Title = wire.Title
		p.Tags = wire.Tags
		return nil
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		if len(parts) > 0 {
			_ = json.Unmarshal(parts[0], &p.Href)
		}
		if len(parts) > 1 {
			_ = json.Unmarshal(parts[1], &p.Tags)
		}
		return nil
	}

	// Unknown shape; leave the photo empty and let the upserter skip it.
	return nil
}

// RawPhotoTag is either {"label": "..."} or a bare string.
type RawPhotoTag struct {
	Label string
}

func (t *RawPhotoTag) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &t.Label)
	}
	var wire struct {
		Label string `json:"label"`
	}
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return err
	}
	t.Label = wire.Label
	return nil
}

// FlexString decodes JSON strings and numbers alike; some feeds send
// identifiers like zip codes and parcel numbers as bare numbers.
type FlexString string

func (s *FlexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = ""
		return nil
	}
	if trimmed[0] == '"' {
		var v string
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		// Not a string or number; treat as absent.
		*s = ""
		return nil
	}
	// Render integral values without a trailing ".0".
	if i, err := n.Int64(); err == nil {
		*s = FlexString(strconv.FormatInt(i, 10))
		return nil
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		*s = FlexString(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*s = FlexString(n.String())
	return nil
}

func (s FlexString) String() string { return string(s) }
