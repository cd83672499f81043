package website

// Template is one selectable site design.
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Preview     string   `json:"preview"`
	Features    []string `json:"features"`
}

var catalog = []Template{
	{
		ID:          "elegant-minimal",
		Name:        "Elegant Minimal",
		Description: "A clean and modern design perfect for sophisticated couples",
		Preview:     "https://images.unsplash.com/photo-1519741497674-611481863552?auto=format&fit=crop&q=80",
		Features:    []string{"Photo Gallery", "RSVP System", "Thank You Cards", "QR Code Integration"},
	},
	{
		ID:          "romantic-classic",
		Name:        "Romantic Classic",
		Description: "Timeless design with romantic elements and soft colors",
		Preview:     "https://images.unsplash.com/photo-1511795409834-ef04bbd61622?auto=format&fit=crop&q=80",
		Features:    []string{"Guest Book", "Timeline", "Photo Uploads", "Location Map"},
	},
}

// Templates returns a copy of the catalog.
func Templates() []Template {
	out := make([]Template, len(catalog))
	copy(out, catalog)
	return out
}

func FindTemplate(id string) (Template, bool) {
	for _, t := range catalog {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}
