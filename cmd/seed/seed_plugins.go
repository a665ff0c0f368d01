package main

import (
	"errors"
	"log"

	"ai-plugin-engine/internal/entity"
	"ai-plugin-engine/internal/model"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type seedPlugin struct {
	plugin    model.Plugin
	rootNode  string
	nodes     map[string]entity.DecisionNode
	documents []model.Document
}

// SeedPlugin creates the plugin with its active tree and documents. A plugin
// whose slug already exists is left untouched.
func SeedPlugin(db *gorm.DB, s seedPlugin) error {
	var existing model.Plugin
	err := db.Where("slug = ?", s.plugin.Slug).First(&existing).Error
	if err == nil {
		log.Printf("Plugin '%s' already exists, skipping...", s.plugin.Slug)
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	nodes, err := json.Marshal(s.nodes)
	if err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		p := s.plugin
		if err := tx.Create(&p).Error; err != nil {
			return err
		}

		if s.rootNode != "" {
			tree := model.DecisionTree{
				PluginId:   p.Id,
				RootNodeId: s.rootNode,
				Nodes:      datatypes.JSON(nodes),
				IsActive:   true,
			}
			if err := tx.Create(&tree).Error; err != nil {
				return err
			}
		}

		for _, d := range s.documents {
			d.PluginId = p.Id
			if err := tx.Create(&d).Error; err != nil {
				return err
			}
			log.Printf("Created document %s (%s) for '%s'", d.Id, d.Name, p.Slug)
		}
		log.Printf("Created plugin: %s (%s)", p.Name, p.Slug)
		return nil
	})
}

func demoPlugins() []seedPlugin {
	creator := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	return []seedPlugin{
		{
			plugin: model.Plugin{
				Slug:         "tenancy-law",
				Name:         "Tenancy Law Assistant",
				Domain:       "residential tenancy law",
				SystemPrompt: "You advise tenants and landlords on residential leases. Be precise about notice periods and deposits.",
				CitationMode: string(entity.CitationModeMandatory),
				IsActive:     true,
				CreatorId:    creator,
			},
			rootNode: "q_party",
			nodes:    map[string]entity.DecisionNode{
				"q_party": {
					Id:               "q_party",
					Type:             entity.NodeTypeQuestion,
					Text:             "Are you the tenant or the landlord?",
					Options:          []string{"tenant", "landlord"},
					ExtractFrom:      "party",
					ChildrenByAnswer: map[string]string{"tenant": "c_deposit", "landlord": "a_landlord"},
					DefaultChildId:   "a_general",
				},
				"c_deposit": {
					Id:           "c_deposit",
					Type:         entity.NodeTypeCondition,
					Field:        "deposit_months",
					Operator:     entity.OperatorGt,
					Value:        "2",
					TrueChildId:  "a_excess_deposit",
					FalseChildId: "a_general",
				},
				"a_excess_deposit": {
					Id:             "a_excess_deposit",
					Type:           entity.NodeTypeAction,
					Recommendation: "The deposit exceeds two months of rent. Ask for the excess back in writing.",
					SourceHint:     "Deposit limits",
					Severity:       entity.SeverityWarning,
				},
				"a_landlord": {
					Id:             "a_landlord",
					Type:           entity.NodeTypeAction,
					Recommendation: "Document the condition of the unit before and after the lease.",
					Severity:       entity.SeverityInfo,
				},
				"a_general": {
					Id:             "a_general",
					Type:           entity.NodeTypeAction,
					Recommendation: "Keep a copy of the signed lease and every payment receipt.",
					Severity:       entity.SeverityInfo,
				},
			},
			documents: []model.Document{
				{
					Id:       uuid.New(),
					Name:     "Residential lease handbook",
					FileType: "md",
					Content: `# Deposit limits

A security deposit may not exceed two months of rent. The landlord returns the deposit
within 30 days of the end of the lease, minus documented repair costs.

# Notice periods

A periodic tenancy ends with one full rental period of written notice. Fixed-term leases
end on their stated date unless both parties agree otherwise.`,
				},
			},
		},
		{
			plugin: model.Plugin{
				Slug:         "household-finance",
				Name:         "Household Finance",
				Domain:       "personal budgeting",
				SystemPrompt: "You help households plan budgets and large payments.",
				CitationMode: string(entity.CitationModeOptional),
				IsActive:     true,
				CreatorId:    creator,
			},
			documents: []model.Document{
				{
					Id:       uuid.New(),
					Name:     "Budgeting basics",
					FileType: "txt",
					Content:  "Housing costs above a third of net income leave little room for savings. Keep three months of expenses as an emergency fund before making large one-off payments.",
				},
			},
		},
	}
}
