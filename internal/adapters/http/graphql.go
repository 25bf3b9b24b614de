package http

import (
	"encoding/base64"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	trailType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Trail",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"slug":           &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"classification": &graphql.Field{Type: graphql.String},
			"color":          &graphql.Field{Type: graphql.String},
			"length_km":      &graphql.Field{Type: graphql.Float},
			"geometry": &graphql.Field{
				Type:        graphql.String,
				Description: "GeoJSON geometry of the trail",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if t, ok := p.Source.(domain.Trail); ok {
						return string(t.Geometry), nil
					}
					if t, ok := p.Source.(*domain.Trail); ok {
						return string(t.Geometry), nil
					}
					return nil, nil
				},
			},
		},
	})

	exportEventType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ExportEvent",
		Fields: graphql.Fields{
			"id":         &graphql.Field{Type: graphql.String},
			"trail_name": &graphql.Field{Type: graphql.String},
			"format":     &graphql.Field{Type: graphql.String},
			"variant":    &graphql.Field{Type: graphql.String},
			"filename":   &graphql.Field{Type: graphql.String},
			"bytes":      &graphql.Field{Type: graphql.Int},
			"at":         &graphql.Field{Type: graphql.DateTime},
		},
	})

	settingsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ExportSettings",
		Fields: graphql.Fields{
			"line_color":        &graphql.Field{Type: graphql.String},
			"line_width":        &graphql.Field{Type: graphql.Float},
			"track_name":        &graphql.Field{Type: graphql.String},
			"track_description": &graphql.Field{Type: graphql.String},
		},
	})

	documentType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ExportedDocument",
		Fields: graphql.Fields{
			"filename":  &graphql.Field{Type: graphql.String},
			"format":    &graphql.Field{Type: graphql.String},
			"mime_type": &graphql.Field{Type: graphql.String},
			"content":   &graphql.Field{Type: graphql.String, Description: "base64 encoded document"},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"trails": &graphql.Field{
				Type:        graphql.NewList(trailType),
				Description: "List catalog trails",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 50},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trails.List(p.Context, p.Args["limit"].(int), p.Args["offset"].(int))
				},
			},
			"trail": &graphql.Field{
				Type:        trailType,
				Description: "Get a trail by UUID or slug",
				Args: graphql.FieldConfigArgument{
					"ref": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Trails.Get(p.Context, p.Args["ref"].(string))
				},
			},
			"navigationLink": &graphql.Field{
				Type:        graphql.String,
				Description: "Directions link of a trail, from an origin when given",
				Args: graphql.FieldConfigArgument{
					"ref": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"lat": &graphql.ArgumentConfig{Type: graphql.Float},
					"lon": &graphql.ArgumentConfig{Type: graphql.Float},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					var origin *domain.UserLocation
					lat, okLat := p.Args["lat"].(float64)
					lon, okLon := p.Args["lon"].(float64)
					if okLat && okLon {
						origin = &domain.UserLocation{Latitude: lat, Longitude: lon}
					}
					return deps.Trails.NavigationLink(p.Context, p.Args["ref"].(string), origin)
				},
			},
			"recentExports": &graphql.Field{
				Type:        graphql.NewList(exportEventType),
				Description: "Latest delivered artifacts",
				Args: graphql.FieldConfigArgument{
					"limit": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if deps.ExportLog == nil {
						return nil, errors.New("export log not configured")
					}
					return deps.ExportLog.Recent(p.Context, p.Args["limit"].(int))
				},
			},
			"exportDefaults": &graphql.Field{
				Type: settingsType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Exports.Defaults(), nil
				},
			},
		},
	})

	mutationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"exportDocument": &graphql.Field{
				Type:        documentType,
				Description: "Export a trail as KML or GPX",
				Args: graphql.FieldConfigArgument{
					"ref":             &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"format":          &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"session":         &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"includeLocation": &graphql.ArgumentConfig{Type: graphql.Boolean, DefaultValue: false},
					"lineColor":       &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"lineWidth":       &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"trackName":       &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					format := p.Args["format"].(string)
					if isPNG(format) {
						return nil, errors.New("png exports need a map; use GET /v1/trails/{id}/export/png")
					}
					d := &responseDelivery{}
					opts := exportOptions(deps, p.Args["session"].(string), domain.ExportSettings{
						IncludeUserLocation: p.Args["includeLocation"].(bool),
						LineColor:           p.Args["lineColor"].(string),
						LineWidth:           p.Args["lineWidth"].(float64),
						TrackName:           p.Args["trackName"].(string),
					}, d)
					_, res, err := deps.Trails.Export(p.Context, p.Args["ref"].(string), format, opts)
					if err != nil {
						return nil, err
					}
					if d.artifact == nil {
						return nil, errors.New("export produced no artifact")
					}
					return map[string]interface{}{
						"filename":  res.Filename,
						"format":    string(res.Format),
						"mime_type": d.artifact.MIMEType,
						"content":   base64.StdEncoding.EncodeToString(d.artifact.Content),
					}, nil
				},
			},
			"clearLocationCache": &graphql.Field{
				Type: graphql.Boolean,
				Args: graphql.FieldConfigArgument{
					"session": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					prov := deps.Locations.For(p.Args["session"].(string))
					if prov == nil {
						return false, nil
					}
					if err := prov.ClearCache(p.Context); err != nil {
						return false, err
					}
					return true, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query:    queryType,
		Mutation: mutationType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// programming error in the schema definition
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
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		return c.JSON(result)
	}
}
