// The bans package decides whether a connection or username is allowed to
// proceed past the login phase. It sits between the proxy and the persisted
// ban tables, adding a short-TTL lookup cache so that hot paths stay off the
// database.
//
// Lookups fail closed: if the database cannot be consulted, the gate reports
// an active ban with a generic reason rather than letting an unverifiable
// player through.
package bans

import (
	"net"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/portcullismc/portcullis/internal/core/data"
)

// FaultReason is the reason attached to fail-closed verdicts. It is shown to
// the client, so it deliberately says nothing about the underlying fault.
const FaultReason = "You are not allowed to join this server"

const (
	cacheTTL           = 10 * time.Second
	cacheSweepInterval = time.Minute
)

// Verdict is the outcome of a ban lookup.
type Verdict struct {
	Banned bool
	// Reason is the operator-supplied ban reason, or FaultReason when the
	// verdict is the result of a storage fault. Empty when not banned.
	Reason string
}

var faultVerdict = Verdict{Banned: true, Reason: FaultReason}

// Gate answers ban and whitelist queries for the proxy.
type Gate struct {
	db     *gorm.DB
	logger *logrus.Logger
	cache  *cache.Cache
	now    func() time.Time
}

func NewGate(db *gorm.DB, logger *logrus.Logger) *Gate {
	return &Gate{
		db:     db,
		logger: logger,
		cache:  cache.New(cacheTTL, cacheSweepInterval),
		now:    time.Now,
	}
}

// CheckUser looks up the ban verdict for a username. Expired bans are treated
// as absent but their rows are left in place.
func (g *Gate) CheckUser(username string) Verdict {
	cacheKey := "user:" + username
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.(Verdict)
	}

	ban, err := data.FindUserBan(g.db, username)
	if err != nil {
		g.logger.Warnf("ban lookup failed for user %s: %v", username, err)
		return faultVerdict
	}

	verdict := Verdict{}
	if ban != nil && ban.Active(g.now()) {
		verdict = Verdict{Banned: true, Reason: reasonOrEmpty(ban.Reason)}
	}

	g.cache.SetDefault(cacheKey, verdict)
	return verdict
}

// CheckAddr looks up the ban verdict for a source address.
func (g *Gate) CheckAddr(ip net.IP) Verdict {
	cacheKey := "ip:" + string(data.EncodeIP(ip))
	if cached, ok := g.cache.Get(cacheKey); ok {
		return cached.(Verdict)
	}

	ban, err := data.FindIPBan(g.db, ip)
	if err != nil {
		g.logger.Warnf("ban lookup failed for address %s: %v", ip, err)
		return faultVerdict
	}

	verdict := Verdict{}
	if ban != nil && ban.Active(g.now()) {
		verdict = Verdict{Banned: true, Reason: reasonOrEmpty(ban.Reason)}
	}

	g.cache.SetDefault(cacheKey, verdict)
	return verdict
}

// WhitelistAllows reports whether a username may log in under the current
// whitelist policy. When enforcement is disabled every username is allowed.
// Storage faults deny, consistent with the ban gate.
func (g *Gate) WhitelistAllows(username string) bool {
	enabled, err := data.WhitelistEnabled(g.db)
	if err != nil {
		g.logger.Warnf("whitelist lookup failed: %v", err)
		return false
	}
	if !enabled {
		return true
	}

	entry, err := data.FindWhitelistEntry(g.db, username)
	if err != nil {
		g.logger.Warnf("whitelist lookup failed for user %s: %v", username, err)
		return false
	}
	return entry != nil
}

func reasonOrEmpty(reason *string) string {
	if reason != nil {
		return *reason
	}
	return ""
}
