package carriers

import (
	_ "embed"
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/BearBump/ParcelDesk/internal/models"
)

//go:embed carriers.json
var builtin []byte

// popularIDs is the quick-pick list shown when adding a package.
var popularIDs = []int{1151, 3041, 3011, 7041, 6051, 11031, 16071, 19131, 10021}

// Directory is the read-only carrier dataset.
type Directory struct {
	all  []models.Carrier
	byID map[int]models.Carrier
}

// Load reads a 17TRACK apicarrier.all.json file. An empty path selects the built-in subset.
func Load(path string) (*Directory, error) {
	if path == "" {
		return Parse(builtin)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read carriers file")
	}
	return Parse(b)
}

func Parse(b []byte) (*Directory, error) {
	var list []models.Carrier
	if err := json.Unmarshal(b, &list); err != nil {
		return nil, errors.Wrap(err, "decode carriers")
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].ID < list[j].ID })

	d := &Directory{all: list, byID: make(map[int]models.Carrier, len(list))}
	for _, c := range list {
		d.byID[c.ID] = c
	}
	return d, nil
}

func (d *Directory) All() []models.Carrier {
	return append([]models.Carrier(nil), d.all...)
}

func (d *Directory) Len() int {
	return len(d.all)
}

func (d *Directory) ByID(id int) (models.Carrier, bool) {
	c, ok := d.byID[id]
	return c, ok
}

// Name is the English name, or the numeric id when the carrier is unknown.
func (d *Directory) Name(id int) string {
	if c, ok := d.byID[id]; ok {
		return c.Name
	}
	return "carrier " + strconv.Itoa(id)
}

// Search matches query case-insensitively against every name and the country ISO code.
// An empty query returns everything.
func (d *Directory) Search(query string) []models.Carrier {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return d.All()
	}
	var out []models.Carrier
	for _, c := range d.all {
		if contains(c.Name, q) || contains(c.CountryISO, q) || contains(c.NameZhCN, q) || contains(c.NameZhHK, q) {
			out = append(out, c)
		}
	}
	return out
}

// Popular returns the quick-pick carriers that exist in the dataset, in quick-pick order.
func (d *Directory) Popular() []models.Carrier {
	out := make([]models.Carrier, 0, len(popularIDs))
	for _, id := range popularIDs {
		if c, ok := d.byID[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

func contains(s, lowerQuery string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), lowerQuery)
}
