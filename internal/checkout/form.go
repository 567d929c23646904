package checkout

import (
	"encoding/json"
	"fmt"
	"strconv"

	"pterodactyl-service/internal/models"
)

// Placeholder tokens the panel substitutes at install time. A variable
// whose resolved value is one of these is system-generated and must not be
// offered to the client.
var reservedPlaceholders = map[string]struct{}{
	"AUTO_PORT":     {},
	"USERNAME":      {},
	"RANDOM_TEXT":   {},
	"RANDOM_NUMBER": {},
	"NODE_IP":       {},
	"PASSWORD":      {},
}

// LocationOption is one deployable location offered at checkout
type LocationOption struct {
	ID    int64
	Label string
}

// BuildSchema derives the checkout form schema for a package. The location
// pseudo-field always comes first, followed by the package's user-editable
// egg variables in their original order. locations come from the inventory
// resolver; an empty list disables the location field.
func BuildSchema(pkg *models.Package, locations []LocationOption) ([]models.FormField, error) {
	fields := []models.FormField{locationField(locations)}

	if len(pkg.Data.Egg) == 0 {
		return fields, nil
	}

	var egg models.Egg
	if err := json.Unmarshal(pkg.Data.Egg, &egg); err != nil {
		return nil, fmt.Errorf("parse egg descriptor: %w", err)
	}

	excluded := make(map[string]struct{}, len(pkg.Data.ExcludedVariables))
	for _, key := range pkg.Data.ExcludedVariables {
		excluded[key] = struct{}{}
	}

	for _, variable := range egg.Variables() {
		if !variable.UserViewable {
			continue
		}
		if _, ok := excluded[variable.EnvVariable]; ok {
			continue
		}

		current := currentValue(pkg, variable)
		if _, ok := reservedPlaceholders[current]; ok {
			continue
		}

		fields = append(fields, variableField(variable, current))
	}

	return fields, nil
}

// currentValue resolves the value shown to the client: an admin preset in
// the package environment wins over the egg's own default.
func currentValue(pkg *models.Package, variable models.EggVariable) string {
	if preset, ok := pkg.Data.Environment[variable.EnvVariable]; ok && preset != "" {
		return preset
	}
	return variable.DefaultValue
}

func variableField(variable models.EggVariable, current string) models.FormField {
	rules := ParseRules(variable.Rules)

	field := models.FormField{
		Key:          variable.EnvVariable,
		Name:         variable.Name,
		Description:  variable.Description,
		Type:         rules.FieldType(),
		DefaultValue: current,
		Rules:        rules.Raw,
		Required:     rules.Required,
	}

	switch field.Type {
	case models.FieldTypeSelect:
		field.Options = make([]models.SelectOption, 0, len(rules.In))
		for _, option := range rules.In {
			field.Options = append(field.Options, models.SelectOption{Value: option, Label: option})
		}
	case models.FieldTypeNumber:
		field.Min = rules.Min
		if field.Min == "" {
			field.Min = "0"
		}
		field.Max = rules.Max
	}

	return field
}

func locationField(locations []LocationOption) models.FormField {
	field := models.FormField{
		Key:         "location",
		Name:        "Server Location",
		Description: "Where do you want us to deploy your server?",
		Type:        models.FieldTypeSelect,
		Rules:       []string{"required"},
		Required:    true,
	}

	if len(locations) == 0 {
		field.Disabled = true
		field.Description = "No locations with free capacity are available for this package right now."
		return field
	}

	field.Options = make([]models.SelectOption, 0, len(locations))
	for _, loc := range locations {
		field.Options = append(field.Options, models.SelectOption{
			Value: strconv.FormatInt(loc.ID, 10),
			Label: loc.Label,
		})
	}

	return field
}
