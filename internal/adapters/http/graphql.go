package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/jmaguas/azenha/internal/core/domain"
	"github.com/jmaguas/azenha/internal/core/ports"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lng": &graphql.Field{Type: graphql.Float},
			"lat": &graphql.Field{Type: graphql.Float},
		},
	})

	structureType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Structure",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"name":         &graphql.Field{Type: graphql.String},
			"kind":         &graphql.Field{Type: graphql.String},
			"location":     &graphql.Field{Type: coordinateType},
			"channel_id":   &graphql.Field{Type: graphql.String},
			"municipality": &graphql.Field{Type: graphql.String},
			"notes":        &graphql.Field{Type: graphql.String},
			"distance":     &graphql.Field{Type: graphql.Float},
		},
	})

	channelType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Channel",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"name":         &graphql.Field{Type: graphql.String},
			"color":        &graphql.Field{Type: graphql.String},
			"municipality": &graphql.Field{Type: graphql.String},
			"path":         &graphql.Field{Type: graphql.NewList(coordinateType)},
		},
	})

	snapResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "SnapResult",
		Fields: graphql.Fields{
			"type":       &graphql.Field{Type: graphql.String},
			"snapped":    &graphql.Field{Type: coordinateType},
			"feature_id": &graphql.Field{Type: graphql.String},
			"distance_m": &graphql.Field{Type: graphql.Float},
		},
	})

	kindCountType := graphql.NewObject(graphql.ObjectConfig{
		Name: "KindCount",
		Fields: graphql.Fields{
			"kind":  &graphql.Field{Type: graphql.String},
			"count": &graphql.Field{Type: graphql.Int},
		},
	})

	municipalityStatsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MunicipalityStats",
		Fields: graphql.Fields{
			"municipality": &graphql.Field{Type: graphql.String},
			"structures":   &graphql.Field{Type: graphql.Int},
			"channels":     &graphql.Field{Type: graphql.Int},
			"by_kind":      &graphql.Field{Type: graphql.NewList(kindCountType)},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"structures": &graphql.Field{
				Type:        graphql.NewList(structureType),
				Description: "List structures, optionally filtered",
				Args: graphql.FieldConfigArgument{
					"kind":         &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"municipality": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"channel_id":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					filter := ports.StructureFilter{
						Kind:         domain.StructureKind(p.Args["kind"].(string)),
						Municipality: p.Args["municipality"].(string),
						ChannelID:    p.Args["channel_id"].(string),
					}
					return deps.Structures.List(p.Context, filter)
				},
			},
			"structure": &graphql.Field{
				Type:        structureType,
				Description: "Get a structure by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Structures.GetByID(p.Context, id)
				},
			},
			"structuresNearby": &graphql.Field{
				Type:        graphql.NewList(structureType),
				Description: "Find structures near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 500.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					center := domain.Coordinate{
						Lat: p.Args["lat"].(float64),
						Lng: p.Args["lng"].(float64),
					}
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Structures.FindNearby(p.Context, center, radius, limit)
				},
			},
			"channels": &graphql.Field{
				Type:        graphql.NewList(channelType),
				Description: "List channels, optionally by municipality",
				Args: graphql.FieldConfigArgument{
					"municipality": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Channels.List(p.Context, p.Args["municipality"].(string))
				},
			},
			"channel": &graphql.Field{
				Type:        channelType,
				Description: "Get a channel by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Channels.GetByID(p.Context, id)
				},
			},
			"resolveSnap": &graphql.Field{
				Type:        snapResultType,
				Description: "Resolve a coordinate against the catalog without writing anything",
				Args: graphql.FieldConfigArgument{
					"lat":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng":       &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"threshold": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					query := domain.Coordinate{
						Lat: p.Args["lat"].(float64),
						Lng: p.Args["lng"].(float64),
					}
					return deps.Snap.Resolve(p.Context, query, threshold(deps, p.Args["threshold"].(float64)))
				},
			},
			"municipalityStats": &graphql.Field{
				Type:        municipalityStatsType,
				Description: "Catalog tallies for one municipality",
				Args: graphql.FieldConfigArgument{
					"name": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					name := p.Args["name"].(string)
					byKind, err := deps.Structures.CountByMunicipality(p.Context, name)
					if err != nil {
						return nil, err
					}
					channels, err := deps.Channels.List(p.Context, name)
					if err != nil {
						return nil, err
					}
					total := 0
					for _, kc := range byKind {
						total += kc.Count
					}
					return domain.MunicipalityStats{
						Municipality: name,
						Structures:   total,
						Channels:     len(channels),
						ByKind:       byKind,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
