package tracking

import (
	"strings"

	"github.com/aRFialho/AvanTracking/internal/models"
)

// statusRule maps provider status vocabulary to a canonical status. Rules are
// evaluated in order and the first keyword hit wins, so the delivered
// synonyms must stay ahead of the transit ones ("ENTREGUE" vs "SAIU PARA
// ENTREGA" is disambiguated purely by rule order plus keyword choice).
type statusRule struct {
	status   string
	keywords []string
}

// The single canonical mapping table. The system used to carry two divergent
// copies of this list (one near the UI, one server-side); keep it in exactly
// one place.
var statusRules = []statusRule{
	{models.StatusDelivered, []string{"ENTREGUE", "DELIVERED"}},
	{models.StatusShipped, []string{"EM TRÂNSITO", "SHIPPED", "TRANSIT"}},
	{models.StatusDeliveryAttempt, []string{"SAIU PARA ENTREGA", "DELIVERY_ATTEMPT"}},
	{models.StatusCreated, []string{"CRIADO", "CREATED"}},
	{models.StatusFailure, []string{"FALHA", "FAILURE", "ROUBO", "AVARIA"}},
	{models.StatusReturned, []string{"DEVOL", "RETURN"}},
	{models.StatusCanceled, []string{"CANCEL"}},
}

// MapProviderStatus translates a provider's human-readable status string into
// the canonical enumeration. Unknown vocabulary defaults to PENDING.
func MapProviderStatus(raw string) string {
	s := strings.ToUpper(raw)
	for _, rule := range statusRules {
		for _, kw := range rule.keywords {
			if strings.Contains(s, kw) {
				return rule.status
			}
		}
	}
	return models.StatusPending
}
