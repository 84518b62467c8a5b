// Package phi defines the HIPAA Safe Harbor identifier universe used by the
// de-identification pipeline: the 18 PHI categories, their human-readable
// definitions, and the placeholder tags rendered in placeholder mode.
package phi

// Category identifies one of the 18 HIPAA Safe Harbor PHI categories.
type Category string

const (
	CategoryPatientName         Category = "patient_name"
	CategoryDate                Category = "date"
	CategoryPhoneNumber         Category = "phone_number"
	CategoryFaxNumber           Category = "fax_number"
	CategoryEmailAddress        Category = "email_address"
	CategorySSN                 Category = "ssn"
	CategoryMedicalRecordNumber Category = "medical_record_number"
	CategoryHealthPlanNumber    Category = "health_plan_number"
	CategoryAccountNumber       Category = "account_number"
	CategoryLicenseNumber       Category = "license_number"
	CategoryVehicleID           Category = "vehicle_id"
	CategoryDeviceID            Category = "device_id"
	CategoryWebURL              Category = "web_url"
	CategoryIPAddress           Category = "ip_address"
	CategoryBiometricID         Category = "biometric_id"
	CategoryPhoto               Category = "photo"
	CategoryGeographicData      Category = "geographic_data"
	CategoryAgeOver89           Category = "age_over_89"
)

// All returns the full category universe in a stable order.
func All() []Category {
	return []Category{
		CategoryPatientName,
		CategoryDate,
		CategoryPhoneNumber,
		CategoryFaxNumber,
		CategoryEmailAddress,
		CategorySSN,
		CategoryMedicalRecordNumber,
		CategoryHealthPlanNumber,
		CategoryAccountNumber,
		CategoryLicenseNumber,
		CategoryVehicleID,
		CategoryDeviceID,
		CategoryWebURL,
		CategoryIPAddress,
		CategoryBiometricID,
		CategoryPhoto,
		CategoryGeographicData,
		CategoryAgeOver89,
	}
}

// Valid reports whether c is one of the 18 Safe Harbor categories.
func (c Category) Valid() bool {
	_, ok := placeholderTags[c]
	return ok
}

var placeholderTags = map[Category]string{
	CategoryPatientName:         "[PATIENT_NAME]",
	CategoryDate:                "[DATE]",
	CategoryPhoneNumber:         "[PHONE_NUMBER]",
	CategoryFaxNumber:           "[FAX_NUMBER]",
	CategoryEmailAddress:        "[EMAIL_ADDRESS]",
	CategorySSN:                 "[SSN]",
	CategoryMedicalRecordNumber: "[MEDICAL_RECORD_NUMBER]",
	CategoryHealthPlanNumber:    "[HEALTH_PLAN_NUMBER]",
	CategoryAccountNumber:       "[ACCOUNT_NUMBER]",
	CategoryLicenseNumber:       "[LICENSE_NUMBER]",
	CategoryVehicleID:           "[VEHICLE_ID]",
	CategoryDeviceID:            "[DEVICE_ID]",
	CategoryWebURL:              "[URL]",
	CategoryIPAddress:           "[IP_ADDRESS]",
	CategoryBiometricID:         "[BIOMETRIC_ID]",
	CategoryPhoto:               "[PHOTO]",
	CategoryGeographicData:      "[ADDRESS]",
	CategoryAgeOver89:           "[AGE_OVER_89]",
}

// Subcategory-specific placeholder tags take precedence over the category
// tag when the classifier reports a recognized subcategory.
var subcategoryTags = map[string]string{
	"date_of_birth":  "[DATE_OF_BIRTH]",
	"admission_date": "[ADMISSION_DATE]",
	"discharge_date": "[DISCHARGE_DATE]",
	"date_of_death":  "[DATE_OF_DEATH]",
	"provider_name":  "[PROVIDER_NAME]",
	"zip_code":       "[ZIP_CODE]",
	"city":           "[CITY]",
}

// PlaceholderTag returns the bracketed tag drawn in placeholder mode for the
// given category/subcategory pair. Unknown categories map to "[REDACTED]".
func PlaceholderTag(category Category, subcategory string) string {
	if tag, ok := subcategoryTags[subcategory]; ok {
		return tag
	}
	if tag, ok := placeholderTags[category]; ok {
		return tag
	}
	return "[REDACTED]"
}

// DisplayName returns the human-readable name for a category, falling back
// to the raw identifier for unknown values.
func DisplayName(category Category) string {
	for _, def := range Definitions() {
		if def.Category == category {
			return def.Display
		}
	}
	return string(category)
}
