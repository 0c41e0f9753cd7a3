package models

// Carrier mirrors one record of the 17TRACK carrier dataset.
type Carrier struct {
	ID         int     `json:"key"`
	Country    int     `json:"_country"`
	CountryISO string  `json:"_country_iso"`
	Email      *string `json:"_email"`
	Tel        *string `json:"_tel"`
	URL        string  `json:"_url"`
	Name       string  `json:"_name"`
	NameZhCN   string  `json:"_name_zh_cn,omitempty"`
	NameZhHK   string  `json:"_name_zh_hk,omitempty"`
}

// Names returns the localized names keyed by locale, skipping empty ones.
func (c Carrier) Names() map[string]string {
	out := map[string]string{"en": c.Name}
	if c.NameZhCN != "" {
		out["zh-CN"] = c.NameZhCN
	}
	if c.NameZhHK != "" {
		out["zh-HK"] = c.NameZhHK
	}
	return out
}
