package orders

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type OrderNumberGenerator struct {
	secret string
	prefix string
}

func NewOrderNumberGenerator(secret, prefix string) *OrderNumberGenerator {
	if prefix == "" {
		prefix = "ORD"
	}
	return &OrderNumberGenerator{secret: secret, prefix: strings.ToUpper(prefix)}
}

// Generate returns a short human-facing order number such as ORD-7KQ2-A91F.
// It is not the idempotency key and carries no meaning beyond display.
func (g *OrderNumberGenerator) Generate(tenantID, principalID int64) string {
	nonce := uuid.NewString()

	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(fmt.Sprintf("tid:%d|pid:%d|nonce:%s", tenantID, principalID, nonce)))

	sum := mac.Sum(nil)
	tag := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(sum)

	return fmt.Sprintf(
		"%s-%s-%s",
		g.prefix,
		strings.ToUpper(tag[:4]),
		strings.ToUpper(uuid.NewString()[:4]),
	)
}
