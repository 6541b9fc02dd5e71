package llm

// BuildRowsJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a generic map.
// It is sent to the model as a structured output constraint and used locally to validate.
// Pathogen names are free text: the normalizer maps them afterwards, so an enum here
// would only make the model drop rows it cannot spell exactly.
func BuildRowsJSONSchema(allowedPathogens []string) map[string]any {
	pathogen := map[string]any{"type": "string", "minLength": 1}
	if len(allowedPathogens) > 0 {
		pathogen["examples"] = allowedPathogens
	}

	row := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"pathogen":     pathogen,
			"ili_percent":  percentProp(),
			"sari_percent": percentProp(),
		},
		"required": []string{"pathogen", "ili_percent", "sari_percent"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"report_date":    dateProp(),
			"reference_date": dateProp(),
			"report_week":    map[string]any{"type": "integer", "minimum": 1, "maximum": 53},
			"rows":           map[string]any{"type": "array", "items": row},
		},
		"required": []string{"rows"},
	}
}

// percentProp leaves the [0, 100] bound to the row parser, which rejects and
// reports out-of-range values the same way for every source.
func percentProp() map[string]any {
	return map[string]any{"type": []string{"number", "null"}}
}

func dateProp() map[string]any {
	return map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`}
}
