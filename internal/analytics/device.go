package analytics

import (
	"context"
	"strings"

	"github.com/mileusna/useragent"
)

// DeviceClassifier derives device, client and bot information from a click.
type DeviceClassifier interface {
	Classify(ctx context.Context, userAgent string, hints func(name string) string) (DeviceInfo, error)
}

// UAClassifier parses user-agent strings and fills gaps from
// Sec-CH-UA client hints.
type UAClassifier struct{}

func NewUAClassifier() *UAClassifier {
	return &UAClassifier{}
}

var brandPrefixes = []struct {
	prefix string
	brand  string
}{
	{"iphone", "Apple"},
	{"ipad", "Apple"},
	{"ipod", "Apple"},
	{"samsung", "Samsung"},
	{"sm-", "Samsung"},
	{"gt-", "Samsung"},
	{"pixel", "Google"},
	{"nexus", "Google"},
	{"oneplus", "OnePlus"},
	{"huawei", "Huawei"},
	{"redmi", "Xiaomi"},
	{"mi ", "Xiaomi"},
	{"moto", "Motorola"},
	{"nokia", "Nokia"},
	{"lg-", "LG"},
}

func (c *UAClassifier) Classify(ctx context.Context, userAgent string, hints func(string) string) (DeviceInfo, error) {
	if err := ctx.Err(); err != nil {
		return DeviceInfo{}, err
	}

	if hints == nil {
		hints = func(string) string { return "" }
	}

	ua := useragent.Parse(userAgent)

	info := DeviceInfo{
		OS:     ua.OS,
		Client: ua.Name,
		Model:  ua.Device,
		IsBot:  ua.Bot,
	}

	if info.IsBot {
		info.BotName = ua.Name
	}

	if info.OS == "" {
		info.OS = unquote(hints("Sec-CH-UA-Platform"))
	}

	if model := unquote(hints("Sec-CH-UA-Model")); model != "" {
		info.Model = model
	}

	if info.Client == "" {
		info.Client = primaryBrand(hints("Sec-CH-UA"))
	}

	info.Brand = brandOf(info.Model, info.OS)

	return info, nil
}

func brandOf(model, os string) string {
	lower := strings.ToLower(model)

	for _, p := range brandPrefixes {
		if strings.HasPrefix(lower, p.prefix) {
			return p.brand
		}
	}

	if os == useragent.MacOS || os == useragent.IOS {
		return "Apple"
	}

	return ""
}

// primaryBrand picks the first meaningful brand out of a Sec-CH-UA list such as
// `"Chromium";v="118", "Google Chrome";v="118", "Not=A?Brand";v="99"`.
func primaryBrand(header string) string {
	var fallback string

	for _, part := range strings.Split(header, ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = unquote(name)

		if name == "" || strings.Contains(strings.ToLower(name), "brand") {
			continue
		}

		if name == "Chromium" {
			fallback = name

			continue
		}

		return name
	}

	return fallback
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}
