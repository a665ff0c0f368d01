package mapper

import (
	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/model"
)

type PluginMapper struct{}

func NewPluginMapper() *PluginMapper {
	return &PluginMapper{}
}

func (m *PluginMapper) ToEntity(p *model.Plugin) *entity.Plugin {
	if p == nil {
		return nil
	}
	return &entity.Plugin{
		Id:           p.Id,
		Slug:         p.Slug,
		Name:         p.Name,
		Domain:       p.Domain,
		SystemPrompt: p.SystemPrompt,
		CitationMode: entity.CitationMode(p.CitationMode),
		IsActive:     p.IsActive,
		CreatorId:    p.CreatorId,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    timePtr(p.UpdatedAt),
	}
}

func (m *PluginMapper) ToModel(p *entity.Plugin) *model.Plugin {
	if p == nil {
		return nil
	}
	out := &model.Plugin{
		Id:           p.Id,
		Slug:         p.Slug,
		Name:         p.Name,
		Domain:       p.Domain,
		SystemPrompt: p.SystemPrompt,
		CitationMode: string(p.CitationMode),
		IsActive:     p.IsActive,
		CreatorId:    p.CreatorId,
		CreatedAt:    p.CreatedAt,
	}
	if p.UpdatedAt != nil {
		out.UpdatedAt = *p.UpdatedAt
	}
	return out
}

type DocumentMapper struct{}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{}
}

func (m *DocumentMapper) ToEntity(d *model.Document) *entity.Document {
	if d == nil {
		return nil
	}
	return &entity.Document{
		Id:         d.Id,
		PluginId:   d.PluginId,
		Name:       d.Name,
		FileType:   d.FileType,
		Content:    d.Content,
		ChunkCount: d.ChunkCount,
		IngestedAt: d.IngestedAt,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  timePtr(d.UpdatedAt),
	}
}
