package jwt

import (
	"crmhub/pkg/config"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "crmhub"

// Claims 访问令牌声明，令牌绑定用户当前所在的组织
type Claims struct {
	UserID         uint   `json:"user_id"`
	OrganizationID uint   `json:"organization_id"`
	Email          string `json:"email"`
	jwt.RegisteredClaims
}

// Manager JWT管理器
type Manager struct {
	secretKey     []byte
	tokenDuration time.Duration
}

// NewManager 创建JWT管理器
func NewManager(secretKey string, tokenDuration time.Duration) *Manager {
	return &Manager{
		secretKey:     []byte(secretKey),
		tokenDuration: tokenDuration,
	}
}

// GenerateToken 为 (用户, 组织) 生成令牌
func (m *Manager) GenerateToken(userID, organizationID uint, email string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:         userID,
		OrganizationID: organizationID,
		Email:          email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// VerifyToken 验证JWT令牌
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("意外的签名方法")
			}
			return m.secretKey, nil
		},
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("无法解析token声明")
	}
	return claims, nil
}

// TokenDuration 获取令牌有效期
func (m *Manager) TokenDuration() time.Duration {
	return m.tokenDuration
}

var (
	defaultManager *Manager
	once           sync.Once
)

// GetManager 获取全局JWT管理器实例
func GetManager() *Manager {
	once.Do(func() {
		cfg := config.GetConfig()
		tokenDuration, err := time.ParseDuration(cfg.JWT.TokenDuration)
		if err != nil {
			tokenDuration = 24 * time.Hour
		}
		defaultManager = NewManager(cfg.JWT.SecretKey, tokenDuration)
	})
	return defaultManager
}
