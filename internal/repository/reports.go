package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/servitec-app/informes-server/internal/database"
	"github.com/servitec-app/informes-server/internal/models"
)

// ErrNotFound is returned when a report id does not exist
var ErrNotFound = errors.New("report not found")

// Filter narrows List results. Zero values mean "no constraint";
// all set fields combine with AND.
type Filter struct {
	Technician string
	Status     string
	From       *time.Time
	To         *time.Time
}

// StatCount is one row of a grouped aggregate
type StatCount struct {
	Label string `gorm:"column:label" json:"label"`
	Total int64  `gorm:"column:total" json:"total"`
}

// Reports is the persistence contract for service reports. The HTTP layer
// depends on this interface so tests can substitute an in-memory double.
type Reports interface {
	Insert(ctx context.Context, report *models.ServiceReport) error
	Get(ctx context.Context, id string) (*models.ServiceReport, error)
	List(ctx context.Context, f Filter) ([]models.ServiceReport, error)
	AttachDocument(ctx context.Context, id, pdfRef string) error
	CountByServiceType(ctx context.Context) ([]StatCount, error)
	CountByTechnician(ctx context.Context) ([]StatCount, error)
}

// gormReports implements Reports on the shared database handle
type gormReports struct {
	db *database.DB
}

// NewReports creates the GORM-backed repository
func NewReports(db *database.DB) Reports {
	return &gormReports{db: db}
}

func (r *gormReports) Insert(ctx context.Context, report *models.ServiceReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *gormReports) Get(ctx context.Context, id string) (*models.ServiceReport, error) {
	var report models.ServiceReport
	err := r.db.WithContext(ctx).First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *gormReports) List(ctx context.Context, f Filter) ([]models.ServiceReport, error) {
	q := r.db.WithContext(ctx).Model(&models.ServiceReport{})
	if f.Technician != "" {
		q = q.Where("technician = ?", f.Technician)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at < ?", *f.To)
	}

	var reports []models.ServiceReport
	if err := q.Order("created_at DESC").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// AttachDocument records the rendered PDF reference and performs the single
// pending -> submitted status transition.
func (r *gormReports) AttachDocument(ctx context.Context, id, pdfRef string) error {
	res := r.db.WithContext(ctx).Model(&models.ServiceReport{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"pdf_ref": pdfRef,
			"status":  models.StatusSubmitted,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *gormReports) CountByServiceType(ctx context.Context) ([]StatCount, error) {
	return r.countBy(ctx, "service_type")
}

func (r *gormReports) CountByTechnician(ctx context.Context) ([]StatCount, error) {
	return r.countBy(ctx, "technician")
}

func (r *gormReports) countBy(ctx context.Context, column string) ([]StatCount, error) {
	var rows []StatCount
	err := r.db.WithContext(ctx).Model(&models.ServiceReport{}).
		Select("COALESCE(NULLIF(" + column + ", ''), '-') AS label, COUNT(*) AS total").
		Group(column).
		Order("total DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
