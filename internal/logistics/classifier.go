// Package logistics decides which management regime an order's freight label
// places it under: channel-managed (the marketplace moves the parcel, the
// tracking provider never sees it) or carrier-tracked (needs reconciliation).
package logistics

import "strings"

// Labels the marketplaces use for shipments they manage themselves.
var channelLabels = []string{
	"coletasme2",
	"shopee xpress",
}

// ChannelManaged reports whether the freight label places the order under
// channel logistics. Matching is case-insensitive; any label containing
// "priorit" (prioritária/prioritario/priority) is channel-managed. Unknown
// labels are carrier-tracked.
func ChannelManaged(freightType string) bool {
	label := strings.ToLower(strings.TrimSpace(freightType))
	for _, l := range channelLabels {
		if label == l {
			return true
		}
	}
	return strings.Contains(label, "priorit")
}

// DefaultFreightLabel is assigned at ingestion when the spreadsheet carries
// no freight type; the first successful sync overwrites it.
const DefaultFreightLabel = "Aguardando Sincronização"

var mercadoLivreLabels = []string{
	"encomenda normal",
	"normal ao endereço",
	"retirada normal na agência",
	"retirada prioritaria na agência",
	"retirada prioritária na agência",
}

var shopeeLabels = []string{
	"shopee xpress",
	"retirada pelo comprador",
}

// NormalizeFreightLabel folds the marketplace spelling variants into the two
// canonical channel labels at ingestion time. Channel-managed orders keep the
// normalized label forever; the carrier feed never overwrites it because they
// never reach the fetch branch.
func NormalizeFreightLabel(raw string) string {
	label := strings.ToLower(strings.TrimSpace(raw))

	for _, l := range mercadoLivreLabels {
		if label == l {
			return "ColetasME2"
		}
	}
	if strings.Contains(label, "priorit") {
		return "ColetasME2"
	}
	for _, l := range shopeeLabels {
		if label == l {
			return "Shopee Xpress"
		}
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return DefaultFreightLabel
	}
	return trimmed
}
