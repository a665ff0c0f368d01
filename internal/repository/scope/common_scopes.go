package scope

import "gorm.io/gorm"

func OrderByCreatedDesc(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC")
}

func OrderByChunkIndex(db *gorm.DB) *gorm.DB {
	return db.Order("chunk_index ASC")
}

// LiveDocuments joins chunks to their document and drops chunks whose
// document was soft-deleted.
func LiveDocuments(db *gorm.DB) *gorm.DB {
	return db.Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Where("documents.deleted_at IS NULL")
}
