package server

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"

	"github.com/gravitas-games/sortshift/internal/config"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/pkg/models"
)

// TokenValidator turns a bearer token into a player.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.Player, error)
}

// Blacklist reports revoked users. *redis.Client satisfies it.
type Blacklist interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// JWTValidator handles JWT token validation
type JWTValidator struct {
	cfg       config.JWTConfig
	prefix    string
	publicKey *ecdsa.PublicKey
	keyMu     sync.RWMutex
	blacklist Blacklist
	client    *http.Client
	logger    *slog.Logger
}

// Claims represents JWT token claims from the login server
type Claims struct {
	UserID      int64  `json:"user_id"`
	Username    string `json:"username"`
	Permissions int64  `json:"permissions"`
	Activated   int64  `json:"activated"`
	jwt.RegisteredClaims
}

// NewJWTValidator creates a validator, fetches the public key and keeps it
// fresh until ctx is cancelled. blacklist may be nil.
func NewJWTValidator(ctx context.Context, cfg config.JWTConfig, blacklistPrefix string, blacklist Blacklist, logger *slog.Logger) (*JWTValidator, error) {
	if cfg.PublicKeyURL == "" {
		return nil, fmt.Errorf("jwt.public_key_url is required")
	}
	v := &JWTValidator{
		cfg:       cfg,
		prefix:    blacklistPrefix,
		blacklist: blacklist,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logging.OrDiscard(logger),
	}

	if err := v.RefreshPublicKey(ctx); err != nil {
		return nil, fmt.Errorf("failed to fetch public key: %w", err)
	}

	go v.periodicKeyRefresh(ctx)

	v.logger.Info("JWT validator initialized", "issuer", cfg.Issuer)
	return v, nil
}

// NewStaticJWTValidator validates against a fixed key. It never refreshes.
func NewStaticJWTValidator(issuer string, key *ecdsa.PublicKey, blacklistPrefix string, blacklist Blacklist, logger *slog.Logger) *JWTValidator {
	return &JWTValidator{
		cfg:       config.JWTConfig{Issuer: issuer},
		prefix:    blacklistPrefix,
		publicKey: key,
		blacklist: blacklist,
		logger:    logging.OrDiscard(logger),
	}
}

// RefreshPublicKey fetches the public key from the login server
func (v *JWTValidator) RefreshPublicKey(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.PublicKeyURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build public key request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch public key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("public key endpoint returned status %d", resp.StatusCode)
	}

	keyData, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read public key: %w", err)
	}

	key, err := parsePublicKey(keyData)
	if err != nil {
		return err
	}

	v.keyMu.Lock()
	v.publicKey = key
	v.keyMu.Unlock()

	v.logger.Info("public key refreshed", "url", v.cfg.PublicKeyURL)
	return nil
}

func parsePublicKey(data []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	pubKey, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	ecdsaKey, ok := pubKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not ECDSA")
	}
	return ecdsaKey, nil
}

// periodicKeyRefresh refreshes the public key periodically
func (v *JWTValidator) periodicKeyRefresh(ctx context.Context) {
	hours := v.cfg.PublicKeyRefreshHrs
	if hours <= 0 {
		hours = 24
	}
	ticker := time.NewTicker(time.Duration(hours) * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := v.RefreshPublicKey(ctx); err != nil {
				v.logger.Warn("failed to refresh public key", "error", err)
			}
		}
	}
}

// ValidateToken validates a JWT token and returns player information
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*models.Player, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}

		v.keyMu.RLock()
		defer v.keyMu.RUnlock()
		if v.publicKey == nil {
			return nil, fmt.Errorf("no public key loaded")
		}
		return v.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	if claims.Issuer != v.cfg.Issuer {
		return nil, fmt.Errorf("invalid issuer: expected %s, got %s", v.cfg.Issuer, claims.Issuer)
	}

	switch claims.Activated {
	case 0:
		return nil, fmt.Errorf("user not activated")
	case -1:
		return nil, fmt.Errorf("user is banned")
	}

	userID := strconv.FormatInt(claims.UserID, 10)
	if v.blacklist != nil {
		n, err := v.blacklist.Exists(ctx, v.prefix+userID).Result()
		if err != nil {
			// Redis being down must not lock every player out.
			v.logger.Warn("failed to check blacklist", "user_id", userID, "error", err)
		} else if n > 0 {
			return nil, fmt.Errorf("token is blacklisted")
		}
	}

	return &models.Player{
		ID:          userID,
		Username:    claims.Username,
		Permissions: claims.Permissions,
		Activated:   claims.Activated,
	}, nil
}

// extractTokenFromHeader extracts JWT token from WebSocket connection header
func extractTokenFromHeader(r *http.Request) string {
	// Sec-WebSocket-Protocol: "access_token, <token>"
	if protocols := r.Header.Get("Sec-WebSocket-Protocol"); protocols != "" {
		parts := parseProtocols(protocols)
		if len(parts) == 2 && parts[0] == "access_token" {
			return parts[1]
		}
	}

	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token
	}

	return r.URL.Query().Get("token")
}

// parseProtocols splits the Sec-WebSocket-Protocol header
func parseProtocols(protocols string) []string {
	var result []string
	for _, p := range strings.Split(protocols, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
