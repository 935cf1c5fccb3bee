package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	defaultBcryptCost = bcrypt.DefaultCost
	minPasswordLen    = 6
	tokenIssuer       = "studydeck"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSession     = errors.New("session is invalid or expired")
)

// Session is an authenticated identity together with its bearer token.
type Session struct {
	Token string
	User  UserRow
}

// SignUp registers a new account and creates its zeroed stats row.
func (d *DB) SignUp(ctx context.Context, name, email, password string) (*UserRow, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrInvalidInput)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := UserRow{ID: uuid.NewString(), Email: email, Name: name, PasswordHash: string(hash)}
	err = d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&UserRow{}).Where("email = ?", email).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return tx.Create(&StatsRow{UserID: user.ID, UpdatedAt: d.now()}).Error
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("sign up: %w", err)
	}
	d.log.Info("account created", zap.String("user_id", user.ID))
	return &user, nil
}

// SignIn checks the credentials and issues a new session token.
func (d *DB) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}
	var user UserRow
	err := d.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	token, err := d.issueToken(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

// GetSession resolves a token to its session. Expired, revoked or forged
// tokens yield ErrInvalidSession.
func (d *DB) GetSession(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	claims, err := d.parseToken(token)
	if err != nil {
		d.log.Debug("rejecting session token", zap.Error(err))
		return nil, ErrInvalidSession
	}
	var sess SessionRow
	err = d.db.WithContext(ctx).Where("id = ? AND user_id = ? AND revoked_at IS NULL", claims.ID, claims.Subject).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !sess.ExpiresAt.After(d.now()) {
		return nil, ErrInvalidSession
	}
	var user UserRow
	if err := d.db.WithContext(ctx).Where("id = ?", sess.UserID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("get session user: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}

// SignOut revokes the session behind token. Unknown tokens are ignored.
func (d *DB) SignOut(ctx context.Context, token string) error {
	claims, err := d.parseToken(token)
	if err != nil {
		return nil
	}
	now := d.now()
	err = d.db.WithContext(ctx).Model(&SessionRow{}).
		Where("id = ? AND revoked_at IS NULL", claims.ID).
		Update("revoked_at", &now).Error
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

// Profile returns the account record for userID.
func (d *DB) Profile(ctx context.Context, userID string) (*UserRow, error) {
	var user UserRow
	err := d.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &user, nil
}

func (d *DB) issueToken(ctx context.Context, userID string) (string, error) {
	if len(d.secret) == 0 {
		return "", errors.New("jwt secret is not configured")
	}
	now := d.now()
	sess := SessionRow{UserID: userID, ExpiresAt: now.Add(d.sessionTTL)}
	if err := d.db.WithContext(ctx).Create(&sess).Error; err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        sess.ID,
		Subject:   userID,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	})
	signed, err := token.SignedString(d.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (d *DB) parseToken(token string) (*jwt.RegisteredClaims, error) {
	if len(d.secret) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return d.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(d.now),
	)
	if err != nil {
		return nil, err
	}
	if !parsed.Valid || claims.ID == "" || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
