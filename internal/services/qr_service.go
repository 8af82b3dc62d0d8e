package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/sonobot/backend/internal/config"
	"github.com/sonobot/backend/internal/models"
)

// QRService renders live share codes as QR images so an invitation can be
// scanned instead of typed. Rendered images are cached briefly in Redis.
type QRService struct {
	db     *sql.DB
	redis  *redis.Client
	config *config.CodesConfig
}

func NewQRService(db *sql.DB, redisClient *redis.Client) *QRService {
	return &QRService{
		db:     db,
		redis:  redisClient,
		config: config.LoadCodesConfig(),
	}
}

// ShareCodeImage returns the PNG for a pending, unexpired share code.
func (s *QRService) ShareCodeImage(ctx context.Context, code string) ([]byte, error) {
	key := fmt.Sprintf("qr:sharecode:%s", code)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Bytes(); err == nil {
			return cached, nil
		}
	}

	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx, `
		SELECT expires_at FROM friend_links
		WHERE share_code = $1 AND status = $2
		ORDER BY id
		LIMIT 1
	`, code, models.LinkPending).Scan(&expiresAt)
	if err == sql.ErrNoRows {
		return nil, userErr(ErrNotFound, "Mã %s không tồn tại hoặc đã được dùng.", code)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up share code: %w", err)
	}
	if time.Now().After(expiresAt) {
		return nil, userErr(ErrConflict, "Mã %s đã hết hạn.", code)
	}

	// The payload is the exact command to send back to the bot.
	qr, err := qrcode.New("link "+code, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to build QR code: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, fmt.Errorf("failed to encode QR image: %w", err)
	}

	if s.redis != nil {
		s.redis.Set(ctx, key, buf.Bytes(), s.config.QRImageTTL)
	}
	return buf.Bytes(), nil
}
