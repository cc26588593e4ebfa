package candidates

// Style labels randomly composed candidates.
type Style struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	// Keywords are normalized (lower case, no diacritics) description
	// tokens that select this style.
	Keywords []string `json:"-"`
}

// Styles is the fixed set of composite styles, in display order.
var Styles = []Style{
	{
		Key:         "dynamic",
		Title:       "Estilo Dinámico",
		Description: "Colores vibrantes con efectos de movimiento",
		Keywords:    []string{"dinamico", "dinamica", "dynamic"},
	},
	{
		Key:         "minimal",
		Title:       "Estilo Minimalista",
		Description: "Diseño limpio con tipografía destacada",
		Keywords:    []string{"minimalista", "minimal", "minimalist"},
	},
	{
		Key:         "emotional",
		Title:       "Estilo Emocional",
		Description: "Expresiones llamativas y colores intensos",
		Keywords:    []string{"emocional", "emotional"},
	},
}

// StyleByKey returns the style with the given key.
func StyleByKey(key string) (Style, bool) {
	for _, s := range Styles {
		if s.Key == key {
			return s, true
		}
	}
	return Style{}, false
}
