package models

import "time"

// DateLayout is the wire format used for calendar dates (expiry, delivery).
const DateLayout = "2006-01-02"

// Species is the animal group a vaccine targets.
type Species string

const (
	SpeciesPoultry Species = "poultry"
	SpeciesSwine   Species = "swine"
)

// Valid reports whether s is a supported species.
func (s Species) Valid() bool {
	return s == SpeciesPoultry || s == SpeciesSwine
}

// VaccineType describes how the antigen is prepared.
type VaccineType string

const (
	VaccineLive       VaccineType = "live"
	VaccineKilled     VaccineType = "killed"
	VaccineAttenuated VaccineType = "attenuated"
)

// Valid reports whether t is a supported vaccine type.
func (t VaccineType) Valid() bool {
	switch t {
	case VaccineLive, VaccineKilled, VaccineAttenuated:
		return true
	}
	return false
}

const (
	// DefaultLeadTimeDays is used when a product does not configure its own lead time.
	DefaultLeadTimeDays = 3
	// DefaultMinimumOrderQty is used when a product does not configure a minimum.
	DefaultMinimumOrderQty = 1
	// PlaceholderImageURL is served for products without an uploaded image.
	PlaceholderImageURL = "/placeholder.svg"
)

// Product is a vaccine in the catalog.
type Product struct {
	ID                  int64       `bson:"_id" json:"id"`
	Name                string      `bson:"name" json:"name"`
	Brand               string      `bson:"brand" json:"brand"`
	Species             Species     `bson:"species" json:"species"`
	Type                VaccineType `bson:"product_type" json:"product_type"`
	Manufacturer        string      `bson:"manufacturer" json:"manufacturer"`
	Description         string      `bson:"description" json:"description"`
	ActiveIngredients   string      `bson:"active_ingredients" json:"active_ingredients"`
	ColdChainRequired   bool        `bson:"cold_chain_required" json:"cold_chain_required"`
	StorageTempRange    string      `bson:"storage_temp_range" json:"storage_temp_range"`
	ImageURL            string      `bson:"image_url" json:"image_url"`
	ImageAlt            string      `bson:"image_alt" json:"image_alt"`
	Tags                []string    `bson:"tags" json:"tags"`
	MinimumOrderQty     int         `bson:"minimum_order_qty" json:"minimum_order_qty"`
	LeadTimeDays        int         `bson:"lead_time_days" json:"lead_time_days"`
	AvailableStock      int         `bson:"available_stock" json:"available_stock"`
	AdministrationNotes string      `bson:"administration_notes" json:"administration_notes"`
	CreatedAt           time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time   `bson:"updated_at" json:"updated_at"`

	// Populated on read, never stored with the product document.
	DosePacks  []DosePack `bson:"-" json:"dose_packs"`
	Batches    []Batch    `bson:"-" json:"batches"`
	TotalStock int        `bson:"-" json:"total_stock"`
	TotalUnits int        `bson:"-" json:"total_units"`
}

// ApplyDefaults fills zero-valued settings the same way the catalog does on create.
func (p *Product) ApplyDefaults() {
	if p.MinimumOrderQty <= 0 {
		p.MinimumOrderQty = DefaultMinimumOrderQty
	}
	if p.LeadTimeDays <= 0 {
		p.LeadTimeDays = DefaultLeadTimeDays
	}
	if p.ImageURL == "" {
		p.ImageURL = PlaceholderImageURL
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
}

// DosePack is a purchasable denomination of a product.
type DosePack struct {
	ID           int64 `bson:"_id" json:"id"`
	ProductID    int64 `bson:"product" json:"product"`
	Doses        int   `bson:"doses" json:"doses"`
	UnitsPerPack int   `bson:"units_per_pack" json:"units_per_pack"`
}

// Orderable reports whether both pack figures are positive.
func (d DosePack) Orderable() bool {
	return d.Doses > 0 && d.UnitsPerPack > 0
}

// BatchStatus tracks the physical state of a production lot.
type BatchStatus string

const (
	BatchAvailable BatchStatus = "available"
	BatchReserved  BatchStatus = "reserved"
	BatchShipped   BatchStatus = "shipped"
	BatchExpired   BatchStatus = "expired"
)

// Valid reports whether s is a known batch status.
func (s BatchStatus) Valid() bool {
	switch s {
	case BatchAvailable, BatchReserved, BatchShipped, BatchExpired:
		return true
	}
	return false
}

// Batch is a physical production lot of a product.
type Batch struct {
	ID               int64       `bson:"_id" json:"id"`
	ProductID        int64       `bson:"product" json:"product"`
	BatchNumber      string      `bson:"batch_number" json:"batch_number"`
	ExpiryDate       string      `bson:"expiry_date" json:"expiry_date"`
	Quantity         int         `bson:"quantity" json:"quantity"`
	QuantityReserved int         `bson:"quantity_reserved" json:"quantity_reserved"`
	Status           BatchStatus `bson:"status" json:"status"`
	StorageLocation  string      `bson:"storage_location" json:"storage_location"`
	ImageURL         string      `bson:"image_url" json:"image_url"`
	ImageAlt         string      `bson:"image_alt" json:"image_alt"`
	CreatedAt        time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `bson:"updated_at" json:"updated_at"`

	AvailableQuantity int `bson:"-" json:"available_quantity"`
}

// Available returns quantity minus reserved.
func (b Batch) Available() int {
	return b.Quantity - b.QuantityReserved
}

// Expiry parses the batch expiry date.
func (b Batch) Expiry() (time.Time, error) {
	return time.Parse(DateLayout, b.ExpiryDate)
}

// Refresh recomputes the derived fields after a read or write.
func (b *Batch) Refresh() {
	b.AvailableQuantity = b.Available()
}
