package specification

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BySlug matches plugin slugs case-insensitively.
type BySlug struct {
	Slug string
}

func (s BySlug) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("LOWER(slug) = ?", strings.ToLower(strings.TrimSpace(s.Slug)))
}

type ByPluginID struct {
	PluginID uuid.UUID
}

func (s ByPluginID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("plugin_id = ?", s.PluginID)
}

type ByDocumentID struct {
	DocumentID uuid.UUID
}

func (s ByDocumentID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("document_id = ?", s.DocumentID)
}

// ActiveOnly keeps rows with is_active set.
type ActiveOnly struct{}

func (s ActiveOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("is_active = ?", true)
}

type ByStatus struct {
	Status string
}

func (s ByStatus) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("status = ?", s.Status)
}
