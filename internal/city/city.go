package city

// City is one supported appointment location. ID is the facility id the
// remote scheduler uses in its appointment-days URLs.
type City struct {
	Name string
	ID   string
	Skip bool
}

type List []City

// Defaults is the consulate table for the en-ca portal.
func Defaults() List {
	return List{
		{Name: "Calgary", ID: "89"},
		{Name: "Halifax", ID: "90"},
		{Name: "Montreal", ID: "91"},
		{Name: "Ottawa", ID: "92"},
		{Name: "Quebec City", ID: "93"},
		{Name: "Toronto", ID: "94"},
		{Name: "Vancouver", ID: "95"},
	}
}

func (l List) ByID(id string) (City, bool) {
	for _, c := range l {
		if c.ID == id {
			return c, true
		}
	}
	return City{}, false
}

// Eligible returns the cities that should be queued, in table order.
func (l List) Eligible() []City {
	var out []City
	for _, c := range l {
		if c.Skip {
			continue
		}
		out = append(out, c)
	}
	return out
}
