package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sonobot/backend/internal/config"
	"github.com/sonobot/backend/internal/models"
	"github.com/sonobot/backend/internal/parser"
)

// maxAliasLen caps display names; anything longer is unusable in replies.
const maxAliasLen = 32

// codeCharset avoids visually ambiguous characters in share and
// confirmation codes.
const codeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

var titleCaser = cases.Title(language.Vietnamese)

// DirectoryService maintains the alias table and the friend-link table:
// who a party is called, and who trusts whom for confirmation.
type DirectoryService struct {
	db     *sql.DB
	redis  *redis.Client
	config *config.CodesConfig
	audit  *AuditLogger
}

func NewDirectoryService(db *sql.DB, redisClient *redis.Client) *DirectoryService {
	return &DirectoryService{
		db:     db,
		redis:  redisClient,
		config: config.LoadCodesConfig(),
		audit:  NewAuditLogger(),
	}
}

// ResolveDisplayName returns a party's display name, or "" when the party
// has no alias yet.
func (s *DirectoryService) ResolveDisplayName(ctx context.Context, partyID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT display_name FROM aliases WHERE party_id = $1`, partyID).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve display name: %w", err)
	}
	return name, nil
}

// ResolveParty returns the party id owning a display name under normalized
// comparison, or "" when the name is unclaimed.
func (s *DirectoryService) ResolveParty(ctx context.Context, name string) (string, error) {
	var partyID string
	err := s.db.QueryRowContext(ctx,
		`SELECT party_id FROM aliases WHERE normalized_name = $1`, parser.Normalize(name)).Scan(&partyID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve party: %w", err)
	}
	return partyID, nil
}

// SetAlias stores a party's self-chosen display name. Uniqueness is
// enforced at write time under normalized comparison.
func (s *DirectoryService) SetAlias(ctx context.Context, partyID, name string) (string, error) {
	name = strings.TrimSpace(name)
	normalized := parser.Normalize(name)
	if normalized == "" {
		return "", userErr(ErrValidation, "Tên không hợp lệ, hãy dùng chữ hoặc số.")
	}
	if len([]rune(name)) > maxAliasLen {
		return "", userErr(ErrValidation, "Tên quá dài, tối đa %d ký tự.", maxAliasLen)
	}

	var owner string
	err := s.db.QueryRowContext(ctx,
		`SELECT party_id FROM aliases WHERE normalized_name = $1`, normalized).Scan(&owner)
	if err != nil && err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to check alias uniqueness: %w", err)
	}
	if owner != "" && owner != partyID {
		return "", userErr(ErrConflict, "Tên \"%s\" đã có người dùng, hãy chọn tên khác.", name)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO aliases (party_id, display_name, normalized_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (party_id) DO UPDATE
		SET display_name = EXCLUDED.display_name, normalized_name = EXCLUDED.normalized_name
	`, partyID, name, normalized)
	if err != nil {
		return "", fmt.Errorf("failed to store alias: %w", err)
	}

	log.Printf("[DIRECTORY] Alias set: party=%s name=%s", partyID, name)
	return name, nil
}

// EnsureAlias auto-names a party on first contact: the external profile's
// given name, capitalized, with an incrementing numeric suffix on
// collision (Tuan, Tuan2, Tuan3, ...). Returns the existing alias when one
// is already set.
func (s *DirectoryService) EnsureAlias(ctx context.Context, partyID, profileName string) (string, error) {
	existing, err := s.ResolveDisplayName(ctx, partyID)
	if err != nil {
		return "", err
	}
	if existing != "" {
		return existing, nil
	}

	base := titleCaser.String(strings.TrimSpace(profileName))
	if parser.Normalize(base) == "" {
		base = "Ban"
	}

	for i := 1; ; i++ {
		candidate := base
		if i > 1 {
			candidate = base + strconv.Itoa(i)
		}
		owner, err := s.ResolveParty(ctx, candidate)
		if err != nil {
			return "", err
		}
		if owner != "" {
			continue
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO aliases (party_id, display_name, normalized_name)
			VALUES ($1, $2, $3)
		`, partyID, candidate, parser.Normalize(candidate))
		if err != nil {
			return "", fmt.Errorf("failed to auto-name party: %w", err)
		}
		log.Printf("[DIRECTORY] Auto-named party %s as %s", partyID, candidate)
		return candidate, nil
	}
}

// LinkedCounterparties lists a party's active links in link-creation
// order. The order is stable so positional references ("@3") and the
// numbered "friends" listing agree.
func (s *DirectoryService) LinkedCounterparties(ctx context.Context, partyID string) ([]parser.LinkedName, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT party_a, party_b, name_b_for_a, name_a_for_b
		FROM friend_links
		WHERE status = $1 AND (party_a = $2 OR party_b = $2)
		ORDER BY id
	`, models.LinkActive, partyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	var linked []parser.LinkedName
	for rows.Next() {
		var link models.FriendLink
		if err := rows.Scan(&link.PartyA, &link.PartyB, &link.NameBForA, &link.NameAForB); err != nil {
			return nil, fmt.Errorf("failed to scan friend link: %w", err)
		}
		linked = append(linked, parser.LinkedName{
			PartyID:     link.Peer(partyID),
			DisplayName: link.NameFor(partyID),
		})
	}
	return linked, rows.Err()
}

// ActiveLink finds the active link for an unordered pair, or nil.
func (s *DirectoryService) ActiveLink(ctx context.Context, partyA, partyB string) (*models.FriendLink, error) {
	var link models.FriendLink
	err := s.db.QueryRowContext(ctx, `
		SELECT id, party_a, party_b, name_b_for_a, name_a_for_b, status
		FROM friend_links
		WHERE status = $1
		  AND ((party_a = $2 AND party_b = $3) OR (party_a = $3 AND party_b = $2))
		LIMIT 1
	`, models.LinkActive, partyA, partyB).Scan(
		&link.ID, &link.PartyA, &link.PartyB, &link.NameBForA, &link.NameAForB, &link.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up link: %w", err)
	}
	return &link, nil
}

// CreateShareCode issues a time-boxed invitation code. The issuer must
// have an alias first, because redemption fixes the reverse display name
// from it.
func (s *DirectoryService) CreateShareCode(ctx context.Context, partyID string) (string, error) {
	alias, err := s.ResolveDisplayName(ctx, partyID)
	if err != nil {
		return "", err
	}
	if alias == "" {
		return "", userErr(ErrValidation, "Bạn cần đặt tên trước: gõ \"ten <tên của bạn>\".")
	}

	if err := s.checkRateLimit(ctx, partyID); err != nil {
		return "", err
	}

	code, err := s.freshShareCode(ctx)
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO friend_links (party_b, share_code, status, expires_at)
		VALUES ($1, $2, $3, $4)
	`, partyID, code, models.LinkPending, time.Now().Add(s.config.ShareCodeTimeout))
	if err != nil {
		return "", fmt.Errorf("failed to store share code: %w", err)
	}

	s.incrementRateLimit(ctx, partyID)
	log.Printf("[DIRECTORY] Share code issued: party=%s code=%s", partyID, code)
	return code, nil
}

// RedeemShareCode activates a pending invitation. The redeemer supplies
// the name they will use for the issuer; the reverse name is fixed from
// the redeemer's alias. Expiry is enforced lazily at use time.
func (s *DirectoryService) RedeemShareCode(ctx context.Context, redeemerID, code, name string) (*models.FriendLink, error) {
	name = strings.TrimSpace(name)
	if parser.Normalize(name) == "" {
		return nil, userErr(ErrValidation, "Tên không hợp lệ, hãy dùng chữ hoặc số.")
	}
	redeemerAlias, err := s.ResolveDisplayName(ctx, redeemerID)
	if err != nil {
		return nil, err
	}
	if redeemerAlias == "" {
		return nil, userErr(ErrValidation, "Bạn cần đặt tên trước: gõ \"ten <tên của bạn>\".")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var link models.FriendLink
	err = tx.QueryRowContext(ctx, `
		SELECT id, party_b, expires_at
		FROM friend_links
		WHERE share_code = $1 AND status = $2
		ORDER BY id
		LIMIT 1
		FOR UPDATE
	`, code, models.LinkPending).Scan(&link.ID, &link.PartyB, &link.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, userErr(ErrNotFound, "Mã %s không tồn tại hoặc đã được dùng.", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up share code: %w", err)
	}

	if time.Now().After(link.ExpiresAt) {
		if _, err := tx.ExecContext(ctx,
			`UPDATE friend_links SET status = $1 WHERE id = $2`, models.LinkExpired, link.ID); err != nil {
			return nil, fmt.Errorf("failed to expire share code: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("failed to commit: %w", err)
		}
		return nil, userErr(ErrConflict, "Mã %s đã hết hạn, hãy xin mã mới.", code)
	}

	if link.PartyB == redeemerID {
		return nil, userErr(ErrConflict, "Bạn không thể kết bạn với chính mình.")
	}

	existing, err := s.ActiveLink(ctx, redeemerID, link.PartyB)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, userErr(ErrConflict, "Hai bạn đã kết bạn từ trước rồi.")
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE friend_links
		SET party_a = $1, name_b_for_a = $2, name_a_for_b = $3, status = $4
		WHERE id = $5
	`, redeemerID, name, redeemerAlias, models.LinkActive, link.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to activate link: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	link.PartyA = redeemerID
	link.NameBForA = name
	link.NameAForB = redeemerAlias
	link.Status = models.LinkActive
	s.audit.LogLink(redeemerID, link.PartyB, "sharecode")
	return &link, nil
}

// DirectLink links two parties without a code: used when a debt command
// names an unlinked counterparty whose label exactly matches another
// party's alias. Returns nil when no such party exists.
func (s *DirectoryService) DirectLink(ctx context.Context, creatorID, label string) (*models.FriendLink, error) {
	otherID, err := s.ResolveParty(ctx, label)
	if err != nil {
		return nil, err
	}
	if otherID == "" || otherID == creatorID {
		return nil, nil
	}

	existing, err := s.ActiveLink(ctx, creatorID, otherID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	creatorAlias, err := s.ResolveDisplayName(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if creatorAlias == "" {
		creatorAlias = "Ban"
	}

	link := &models.FriendLink{
		PartyA:    creatorID,
		PartyB:    otherID,
		NameBForA: label,
		NameAForB: creatorAlias,
		Status:    models.LinkActive,
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO friend_links (party_a, party_b, name_b_for_a, name_a_for_b, share_code, status, expires_at)
		VALUES ($1, $2, $3, $4, '', $5, now())
		RETURNING id
	`, link.PartyA, link.PartyB, link.NameBForA, link.NameAForB, models.LinkActive).Scan(&link.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create direct link: %w", err)
	}

	s.audit.LogLink(creatorID, otherID, "direct")
	return link, nil
}

// freshShareCode generates a code and retries while a live pending
// invitation already holds it.
func (s *DirectoryService) freshShareCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code := GenerateCode(s.config.ShareCodeLength)
		var exists bool
		err := s.db.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM friend_links
				WHERE share_code = $1 AND status = $2 AND expires_at > now()
			)
		`, code, models.LinkPending).Scan(&exists)
		if err != nil {
			return "", fmt.Errorf("failed to check share code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New("failed to generate a unique share code")
}

// GenerateCode returns a short random code over the unambiguous charset.
func GenerateCode(length int) string {
	code := make([]byte, length)
	charsetLen := big.NewInt(int64(len(codeCharset)))
	for i := range code {
		n, _ := rand.Int(rand.Reader, charsetLen)
		code[i] = codeCharset[n.Int64()]
	}
	return string(code)
}

func (s *DirectoryService) checkRateLimit(ctx context.Context, partyID string) error {
	if s.redis == nil {
		return nil
	}
	key := fmt.Sprintf("sharecode:ratelimit:%s", partyID)
	count, err := s.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		log.Printf("[DIRECTORY] Rate limit check failed, allowing: %v", err)
		return nil
	}
	if count >= s.config.MaxSharePerUser {
		return userErr(ErrConflict, "Bạn đã xin quá nhiều mã, thử lại sau nhé.")
	}
	return nil
}

func (s *DirectoryService) incrementRateLimit(ctx context.Context, partyID string) {
	if s.redis == nil {
		return
	}
	key := fmt.Sprintf("sharecode:ratelimit:%s", partyID)
	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.RateLimitWindow)
	pipe.Exec(ctx)
}
