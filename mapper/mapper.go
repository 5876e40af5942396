package mapper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"estate_ingest/config"
	"estate_ingest/models"
)

// storeTimeFormat is the naive datetime format the store expects.
const storeTimeFormat = "2006-01-02 15:04:05"

// Mapper flattens raw harvest records into store field values. Mapping has
// no side effects beyond warning logs; the same input yields the same
// output.
type Mapper struct {
	statusTable []mapping
	typeTable   []mapping
}

// New builds a Mapper with the built-in lookup tables, adjusted by the
// optional config overrides.
func New(overrides *config.Mappings) *Mapper {
	m := &Mapper{
		statusTable: defaultMarketStatus(),
		typeTable:   defaultPropertyType(),
	}
	if overrides != nil {
		m.statusTable = applyOverrides(m.statusTable, overrides.MarketStatus)
		m.typeTable = applyOverrides(m.typeTable, overrides.PropertyType)
	}
	return m
}

// MapListing produces the listing field values for a raw record. Tag and
// school links are resolved later by the listing service; everything else
// the store needs is set here.
func (m *Mapper) MapListing(raw *models.RawListingRecord) map[string]any {
	raw.Normalize()

	addr := raw.Address
	desc := raw.Description
	agent := raw.Advertisers.Agent
	broker := raw.Advertisers.Broker
	office := raw.Advertisers.Office
	tax := raw.TaxRecord
	flags := raw.Flags

	vals := map[string]any{
		// Identity
		"property_id":    raw.PropertyID,
		"mls":            raw.MLS,
		"mls_id":         raw.MLSID,
		"mls_status_raw": raw.MLSStatus,

		// Address
		"address":           formatAddress(addr),
		"street":            addr.Street,
		"street_number":     addr.StreetNumber,
		"street_direction":  addr.StreetDirection,
		"street_name":       addr.StreetName,
		"street_suffix":     addr.StreetSuffix,
		"address_full_line": addr.FullLine,
		"unit":              addr.Unit,
		"city":              addr.City,
		"state":             addr.State,
		"zip_code":          addr.Zip.String(),
		"county":            raw.County,
		"neighborhoods":     blob(raw.Neighborhoods),

		// Location
		"latitude":      raw.Latitude,
		"longitude":     raw.Longitude,
		"fips_code":     raw.FIPSCode.String(),
		"parcel_number": raw.ParcelNumber.String(),

		// Price
		"price":                    raw.ListPrice,
		"list_price_min":           raw.ListPriceMin,
		"list_price_max":           raw.ListPriceMax,
		"sold_price":               raw.SoldPrice,
		"last_sold_price":          raw.LastSoldPrice,
		"estimated_monthly_rental": raw.EstimatedMonthlyRental,

		// Structure
		"property_type":       m.mapPropertyType(desc.Style),
		"listing_description": desc.Text,
		"description_title":   desc.Name,
		"bedrooms":            int(desc.Beds),
		"baths_full":          int(desc.BathsFull),
		"baths_half":          int(desc.BathsHalf),
		"sqft":                int(desc.SqFt),
		"lot_sqft":            int(desc.LotSqFt),
		"stories":             desc.Stories,
		"garage":              int(desc.Garage),
		"parking":             blob(raw.Parking),
		"year_built":          int(desc.YearBuilt),

		// Status and dates
		"market_status": m.mapMarketStatus(raw.Status),
		"listing_date":  formatDateTime(raw.ListDate),
		"pending_date":  formatDateTime(raw.PendingDate),
		"sold_date":     formatDateTime(raw.LastSoldDate),
		"days_on_mls":   int(raw.DaysOnMLS),

		// Financial
		"hoa_fee": raw.HOAFee,

		// URL
		"url": raw.PropertyURL,

		// Agent, broker, office
		"agent_name":          agent.Name,
		"agent_phone":         models.FirstPhone(agent.Phones),
		"agent_email":         agent.Email,
		"agent_uuid":          agent.UUID,
		"agent_state_license": agent.StateLicense.String(),
		"broker_name":         broker.Name,
		"broker_uuid":         broker.UUID,
		"office_name":         office.Name,
		"office_uuid":         office.UUID,
		"office_email":        office.Email,

		// Tax record
		"tax_record_apn":              tax.APN.String(),
		"tax_record_cl_id":            tax.CLID.String(),
		"tax_record_last_update_date": formatDateTime(tax.LastUpdateDate),
		"tax_record_public_record_id": tax.PublicRecordID.String(),
		"tax_record_tax_parcel_id":    tax.TaxParcelID.String(),

		// Flags
		"is_coming_soon":      flags.IsComingSoon,
		"is_contingent":       flags.IsContingent,
		"is_foreclosure":      flags.IsForeclosure,
		"is_new_construction": flags.IsNewConstruction,
		"is_new_listing":      flags.IsNewListing,
		"is_pending":          flags.IsPending,
		"is_price_reduced":    flags.IsPriceReduced,

		// Opaque blobs
		"pet_policy":        blob(raw.PetPolicy),
		"open_houses":       blob(raw.OpenHouses),
		"units":             blob(raw.Units),
		"current_estimates": blob(raw.CurrentEstimates),
		"estimates":         blob(raw.Estimates.Raw()),
	}

	// Terms stays structured; the store field accepts the object as-is.
	if terms := bytes.TrimSpace(raw.Terms); len(terms) > 0 && !bytes.Equal(terms, []byte("null")) {
		vals["terms"] = json.RawMessage(terms)
	}

	if len(raw.Tags) > 0 {
		if data, err := json.Marshal(raw.Tags); err == nil {
			vals["property_tags"] = string(data)
		}
	}

	return vals
}

// mapMarketStatus folds provider status text into one of the store's
// market_status values. Unknown statuses land in off_market.
func (m *Mapper) mapMarketStatus(status string) string {
	lower := strings.ToLower(status)
	if lower == "" {
		return "off_market"
	}
	if v, ok := matchExact(m.statusTable, lower); ok {
		return v
	}
	if v, ok := matchSubstring(m.statusTable, lower); ok {
		return v
	}
	return "off_market"
}

// mapPropertyType folds free-form style text into the store's
// property_type selection, defaulting to single_family.
func (m *Mapper) mapPropertyType(style string) string {
	lower := strings.ToLower(style)
	if lower == "" {
		return "single_family"
	}
	if v, ok := matchExact(m.typeTable, lower); ok {
		return v
	}
	if v, ok := matchSubstring(m.typeTable, lower); ok {
		return v
	}
	return "single_family"
}

// formatAddress renders a display address. The provider's own formatted
// string wins when present; otherwise street, unit and a city/state/zip
// line are joined with newlines.
func formatAddress(addr *models.RawAddress) string {
	if addr.FormattedAddress != "" {
		return addr.FormattedAddress
	}

	var parts []string
	if addr.Street != "" {
		parts = append(parts, addr.Street)
	}
	if addr.Unit != "" {
		parts = append(parts, addr.Unit)
	}

	var cityLine strings.Builder
	if addr.City != "" {
		cityLine.WriteString(addr.City)
	}
	if addr.State != "" {
		if cityLine.Len() > 0 {
			cityLine.WriteString(", ")
		}
		cityLine.WriteString(addr.State)
	}
	if zip := addr.Zip.String(); zip != "" {
		if cityLine.Len() > 0 {
			cityLine.WriteString(" ")
		}
		cityLine.WriteString(zip)
	}
	if cityLine.Len() > 0 {
		parts = append(parts, cityLine.String())
	}

	return strings.Join(parts, "\n")
}

// formatDateTime converts ISO timestamps carrying a timezone suffix to the
// store's naive format. Other non-empty strings pass through unchanged;
// unparseable timestamps become "".
func formatDateTime(value string) string {
	if value == "" {
		return ""
	}
	if strings.Contains(value, "T") && (strings.Contains(value, "+") || strings.Contains(value, "Z")) {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			log.Printf("Warning: failed to parse datetime %q: %v", value, err)
			return ""
		}
		return t.Format(storeTimeFormat)
	}
	return value
}

// blob renders a loosely structured block as compact JSON text. Absent and
// empty blocks become "".
func blob(data json.RawMessage) string {
	trimmed := bytes.TrimSpace(data)
	switch string(trimmed) {
	case "", "null", "{}", "[]", `""`:
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		log.Printf("Warning: dropping malformed JSON block: %v", err)
		return ""
	}
	return buf.String()
}

// Scrub drops nil values and forces anything the json encoder rejects into
// its string form so the store payload always serializes.
func Scrub(vals map[string]any) map[string]any {
	out := make(map[string]any, len(vals))
	for key, value := range vals {
		if value == nil {
			continue
		}
		if _, err := json.Marshal(value); err != nil {
			log.Printf("Warning: converted non-serializable value for key %s to string", key)
			out[key] = fmt.Sprintf("%v", value)
			continue
		}
		out[key] = value
	}
	return out
}
