package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Report status values. A report is created as pending and becomes
// submitted once its PDF has been rendered and attached; there is no
// reverse transition.
const (
	StatusPending   = "pending"
	StatusSubmitted = "submitted"
)

// ServiceReport represents a technician service report. Signature, photo
// and attachment fields hold storage references (relative paths or object
// keys); PDFRef stays empty until rendering completes.
type ServiceReport struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	ReportNumber string `gorm:"not null;index" json:"numeroReporte"`
	Technician   string `gorm:"not null;index" json:"tecnico"`
	Client       string `gorm:"not null" json:"cliente"`
	Phone        string `json:"telefono"`

	EquipmentType string `json:"tipoEquipo"`
	ServiceType   string `gorm:"index" json:"tipoServicio"`
	Diagnosis     string `gorm:"type:text" json:"diagnostico"`
	WorkPerformed string `gorm:"type:text" json:"trabajoRealizado"`
	Observations  string `gorm:"type:text" json:"observaciones"`

	Status string `gorm:"default:'pending';index" json:"status"`

	TechnicianSignature string         `json:"firmaTecnico"`
	ClientSignature     string         `json:"firmaCliente"`
	Photos              datatypes.JSON `json:"fotos"`
	Attachments         datatypes.JSON `json:"anexos"`

	PDFRef string `json:"pdf"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for ServiceReport model
func (ServiceReport) TableName() string {
	return "service_reports"
}

// BeforeCreate assigns the immutable report identifier
func (r *ServiceReport) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	return nil
}

// PhotoRefs decodes the stored photo reference list
func (r *ServiceReport) PhotoRefs() []string {
	return decodeRefs(r.Photos)
}

// AttachmentRefs decodes the stored attachment reference list
func (r *ServiceReport) AttachmentRefs() []string {
	return decodeRefs(r.Attachments)
}

// SetPhotoRefs stores the ordered photo reference list
func (r *ServiceReport) SetPhotoRefs(refs []string) {
	r.Photos = encodeRefs(refs)
}

// SetAttachmentRefs stores the ordered attachment reference list
func (r *ServiceReport) SetAttachmentRefs(refs []string) {
	r.Attachments = encodeRefs(refs)
}

func decodeRefs(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var refs []string
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil
	}
	return refs
}

func encodeRefs(refs []string) datatypes.JSON {
	if refs == nil {
		refs = []string{}
	}
	data, _ := json.Marshal(refs)
	return datatypes.JSON(data)
}
