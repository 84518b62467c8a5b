package phi

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SubcategoryDefinition refines a category for the classifier prompt.
type SubcategoryDefinition struct {
	Subcategory string `yaml:"subcategory" json:"subcategory"`
	Display     string `yaml:"display" json:"display"`
	Desc        string `yaml:"desc" json:"desc"`
	Example     string `yaml:"example" json:"example"`
}

// CategoryDefinition describes one PHI category for the classifier prompt
// and for dashboard display.
type CategoryDefinition struct {
	Category      Category                `yaml:"category" json:"category"`
	Display       string                  `yaml:"display" json:"display"`
	Desc          string                  `yaml:"desc" json:"desc"`
	Example       string                  `yaml:"example" json:"example"`
	Subcategories []SubcategoryDefinition `yaml:"subcategories,omitempty" json:"subcategories,omitempty"`
}

// Definitions returns the default HIPAA Safe Harbor category definitions
// used when the caller does not supply overrides.
func Definitions() []CategoryDefinition {
	return defaultDefinitions
}

// LoadDefinitions reads category definition overrides from a YAML file.
// Each entry must name a valid Safe Harbor category.
func LoadDefinitions(path string) ([]CategoryDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("phi: read category definitions: %w", err)
	}

	var doc struct {
		Categories []CategoryDefinition `yaml:"categories"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("phi: parse category definitions: %w", err)
	}
	if len(doc.Categories) == 0 {
		return nil, fmt.Errorf("phi: %s contains no categories", path)
	}
	for _, def := range doc.Categories {
		if !def.Category.Valid() {
			return nil, fmt.Errorf("phi: unknown category %q in %s", def.Category, path)
		}
	}
	return doc.Categories, nil
}

var defaultDefinitions = []CategoryDefinition{
	{
		Category: CategoryPatientName,
		Display:  "Patient Names",
		Desc:     "Full or partial names of patients, relatives, employers, or household members",
		Example:  "John Smith, Mary O'Brien, Dr. Sarah Johnson",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "full_name", Display: "Full Name", Desc: "A person's full name", Example: "John Smith"},
			{Subcategory: "first_name", Display: "First Name", Desc: "First or given name of a person", Example: "John, Sarah"},
			{Subcategory: "last_name", Display: "Last Name", Desc: "Last or family name of a person", Example: "Smith, Johnson"},
			{Subcategory: "provider_name", Display: "Provider Name", Desc: "Names of healthcare providers, doctors, nurses", Example: "Dr. Sarah Johnson, Nurse Williams"},
		},
	},
	{
		Category: CategoryDate,
		Display:  "Dates",
		Desc:     "All dates (except year) directly related to an individual including birth date, admission date, discharge date, date of death, and all ages over 89",
		Example:  "01/15/1990, March 3 2024, DOB: 05/22/1985",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "date_of_birth", Display: "Date of Birth", Desc: "Patient or individual date of birth", Example: "DOB: 01/15/1990"},
			{Subcategory: "admission_date", Display: "Admission Date", Desc: "Hospital or facility admission date", Example: "Admitted: 03/15/2024"},
			{Subcategory: "discharge_date", Display: "Discharge Date", Desc: "Hospital or facility discharge date", Example: "Discharged: 03/20/2024"},
			{Subcategory: "date_of_service", Display: "Date of Service", Desc: "Date when medical service was provided", Example: "Visit date: 02/10/2024"},
			{Subcategory: "date_of_death", Display: "Date of Death", Desc: "Date of death of a patient", Example: "DOD: 01/05/2024"},
			{Subcategory: "other_date", Display: "Other Date", Desc: "Any other date directly related to an individual", Example: "Surgery scheduled for 04/01/2024"},
		},
	},
	{
		Category: CategoryPhoneNumber,
		Display:  "Phone Numbers",
		Desc:     "Telephone numbers including home, work, mobile, and pager numbers",
		Example:  "(555) 123-4567, 555-987-6543",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "phone", Display: "Phone Number", Desc: "Any telephone number", Example: "(555) 123-4567"},
		},
	},
	{
		Category: CategoryFaxNumber,
		Display:  "Fax Numbers",
		Desc:     "Fax numbers",
		Example:  "Fax: (555) 123-4568",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "fax", Display: "Fax Number", Desc: "Any fax number", Example: "Fax: (555) 123-4568"},
		},
	},
	{
		Category: CategoryEmailAddress,
		Display:  "Email Addresses",
		Desc:     "Electronic mail addresses",
		Example:  "patient@email.com, dr.smith@hospital.org",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "email", Display: "Email Address", Desc: "Any email address", Example: "john.doe@email.com"},
		},
	},
	{
		Category: CategorySSN,
		Display:  "Social Security Numbers",
		Desc:     "Social Security numbers",
		Example:  "123-45-6789, SSN: 987654321",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "social_security", Display: "SSN", Desc: "Social Security Number", Example: "123-45-6789"},
		},
	},
	{
		Category: CategoryMedicalRecordNumber,
		Display:  "Medical Record Numbers",
		Desc:     "Medical record numbers and health-related identifiers",
		Example:  "MRN: 12345678, Patient ID: A987654",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "mrn", Display: "Medical Record Number", Desc: "Medical record or patient ID number", Example: "MRN: 12345678"},
		},
	},
	{
		Category: CategoryHealthPlanNumber,
		Display:  "Health Plan Beneficiary Numbers",
		Desc:     "Health plan beneficiary numbers and insurance IDs",
		Example:  "Insurance ID: XYZ123456789, Plan #: HP98765",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "insurance_id", Display: "Health Insurance ID", Desc: "Health plan or insurance ID", Example: "Insurance ID: XYZ123456789"},
		},
	},
	{
		Category: CategoryAccountNumber,
		Display:  "Account Numbers",
		Desc:     "Financial account numbers including bank accounts and billing accounts",
		Example:  "Account #: 987654321, Billing: AC-12345",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "account", Display: "Account Number", Desc: "Financial or billing account number", Example: "Account #: 987654321"},
		},
	},
	{
		Category: CategoryLicenseNumber,
		Display:  "Certificate/License Numbers",
		Desc:     "Certificate or license numbers including driver's license, professional licenses",
		Example:  "DL: S12345678, License #: MD-98765",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "license", Display: "License Number", Desc: "Driver's license, DEA number, or professional license", Example: "DL: S12345678"},
		},
	},
	{
		Category: CategoryVehicleID,
		Display:  "Vehicle Identifiers",
		Desc:     "Vehicle identifiers and serial numbers, including license plate numbers",
		Example:  "Plate: ABC-1234, VIN: 1HGBH41JXMN109186",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "vehicle", Display: "Vehicle ID", Desc: "License plate or vehicle identification number", Example: "Plate: ABC-1234"},
		},
	},
	{
		Category: CategoryDeviceID,
		Display:  "Device Identifiers & Serial Numbers",
		Desc:     "Device identifiers and serial numbers",
		Example:  "Device SN: ABC123456, Pacemaker ID: PM-98765",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "device_serial", Display: "Device Serial Number", Desc: "Medical device identifiers or serial numbers", Example: "SN: ABC123456"},
		},
	},
	{
		Category: CategoryWebURL,
		Display:  "Web URLs",
		Desc:     "Web Universal Resource Locators (URLs)",
		Example:  "http://patientportal.hospital.com/profile/12345",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "url", Display: "URL", Desc: "Web URLs containing identifying information", Example: "http://patientportal.hospital.com"},
		},
	},
	{
		Category: CategoryIPAddress,
		Display:  "IP Addresses",
		Desc:     "Internet Protocol (IP) address numbers",
		Example:  "192.168.1.100, 10.0.0.1",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "ip", Display: "IP Address", Desc: "Internet Protocol addresses", Example: "192.168.1.100"},
		},
	},
	{
		Category: CategoryBiometricID,
		Display:  "Biometric Identifiers",
		Desc:     "Biometric identifiers, including finger and voice prints",
		Example:  "Fingerprint ID: FP-20431",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "biometric", Display: "Biometric ID", Desc: "Fingerprint, voiceprint, or other biometric identifier", Example: "FP-20431"},
		},
	},
	{
		Category: CategoryPhoto,
		Display:  "Photographic Images",
		Desc:     "Full-face photographs and any comparable images",
		Example:  "Photo ID reference IMG-5521",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "photo", Display: "Photo Reference", Desc: "References to identifying photographs", Example: "IMG-5521"},
		},
	},
	{
		Category: CategoryGeographicData,
		Display:  "Geographic Data",
		Desc:     "All geographic subdivisions smaller than a state, including street address, city, county, ZIP code (all 5+ digit codes and their equivalent geocodes)",
		Example:  "123 Main Street, Springfield, IL 62704",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "street_address", Display: "Street Address", Desc: "Street addresses", Example: "123 Main Street, Apt 4B"},
			{Subcategory: "city", Display: "City", Desc: "City names in the context of patient location", Example: "Springfield, Boston"},
			{Subcategory: "zip_code", Display: "ZIP Code", Desc: "ZIP codes or postal codes", Example: "62704, 02101"},
			{Subcategory: "county", Display: "County", Desc: "County names in geographic context", Example: "Cook County, Middlesex"},
		},
	},
	{
		Category: CategoryAgeOver89,
		Display:  "Ages Over 89",
		Desc:     "All elements of dates (including year) indicative of age greater than 89",
		Example:  "Age: 92, 95-year-old patient",
		Subcategories: []SubcategoryDefinition{
			{Subcategory: "age", Display: "Age Over 89", Desc: "Age values exceeding 89 years", Example: "92 years old"},
		},
	},
}
