package models

// Store entity names. The schema lives in the host application; these are
// the models this pipeline writes to.
const (
	EntityListing    = "real_estate.listing"
	EntityPhoto      = "real_estate.photo"
	EntityPhotoTag   = "real_estate.photo.tag"
	EntityTaxHistory = "real_estate.tax_history"
	EntityEstimate   = "real_estate.estimate"
	EntityPopularity = "real_estate.popularity"
	EntityFeature    = "real_estate.feature"
	EntityTag        = "real_estate.tag"
	EntitySchool     = "real_estate.school"
)
