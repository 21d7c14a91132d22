package service

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecoloop/chatsync/internal/config"
	"github.com/ecoloop/chatsync/internal/entity"
	"github.com/ecoloop/chatsync/internal/repository"
	"github.com/ecoloop/chatsync/pkg/errcode"
	"github.com/ecoloop/chatsync/pkg/idgen"
	"github.com/ecoloop/chatsync/pkg/jwt"
)

// AuthService handles account registration, login and logout
type AuthService struct {
	userRepo   *repository.UserRepo
	tokenStore *jwt.TokenStore
	jwtCfg     config.JWTConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo *repository.UserRepo, tokenStore *jwt.TokenStore, jwtCfg config.JWTConfig) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		tokenStore: tokenStore,
		jwtCfg:     jwtCfg,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Id       string `json:"id,omitempty"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
	Avatar   string `json:"avatar,omitempty"`
}

// Register creates a new account
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*entity.UserInfo, error) {
	if req.Nickname == "" || req.Password == "" {
		return nil, errcode.ErrInvalidParam
	}

	id := req.Id
	if id == "" {
		var err error
		id, err = idgen.NextID()
		if err != nil {
			log.CtxError(ctx, "generate user id failed: error=%v", err)
			return nil, errcode.ErrInternalServer
		}
	} else {
		exists, err := s.userRepo.Exists(ctx, id)
		if err != nil {
			log.CtxError(ctx, "check user exists failed: id=%s, error=%v", id, err)
			return nil, errcode.ErrInternalServer
		}
		if exists {
			return nil, errcode.ErrUserExists
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.CtxError(ctx, "hash password failed: error=%v", err)
		return nil, errcode.ErrInternalServer
	}

	user := &entity.User{
		Id:       id,
		Nickname: req.Nickname,
		Avatar:   req.Avatar,
		Password: string(hashed),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		log.CtxError(ctx, "create user failed: id=%s, error=%v", id, err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user registered: id=%s", id)
	return user.ToUserInfo(), nil
}

// LoginResponse represents a successful login
type LoginResponse struct {
	Token string           `json:"token"`
	User  *entity.UserInfo `json:"user"`
}

// Login verifies credentials and issues a token for the platform. A fresh
// login on one platform kicks earlier sessions on the same platform.
func (s *AuthService) Login(ctx context.Context, id, password string, platformId int) (*LoginResponse, error) {
	if id == "" || password == "" {
		return nil, errcode.ErrInvalidParam
	}

	user, err := s.userRepo.GetById(ctx, id)
	if err != nil {
		log.CtxError(ctx, "get user failed: id=%s, error=%v", id, err)
		return nil, errcode.ErrInternalServer
	}
	if user == nil {
		return nil, errcode.ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, errcode.ErrPasswordWrong
	}

	token, err := jwt.GenerateToken(user.Id, platformId, s.jwtCfg.Secret, s.jwtCfg.ExpireHours)
	if err != nil {
		log.CtxError(ctx, "generate token failed: id=%s, error=%v", id, err)
		return nil, errcode.ErrInternalServer
	}

	if _, err := s.tokenStore.KickOtherTokens(ctx, user.Id, platformId, token); err != nil {
		log.CtxWarn(ctx, "kick other tokens failed: id=%s, error=%v", id, err)
	}
	if err := s.tokenStore.StoreToken(ctx, user.Id, platformId, token); err != nil {
		log.CtxError(ctx, "store token failed: id=%s, error=%v", id, err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user logged in: id=%s, platform=%d", id, platformId)
	return &LoginResponse{Token: token, User: user.ToUserInfo()}, nil
}

// Logout invalidates the caller's token on the given platform
func (s *AuthService) Logout(ctx context.Context, uid string, platformId int, token string) error {
	if uid == "" {
		return errcode.ErrAuthRequired
	}
	if err := s.tokenStore.InvalidateToken(ctx, uid, platformId, token); err != nil {
		log.CtxError(ctx, "invalidate token failed: uid=%s, error=%v", uid, err)
		return errcode.ErrInternalServer
	}
	return nil
}

// GetUser returns the public profile for a user
func (s *AuthService) GetUser(ctx context.Context, id string) (*entity.UserInfo, error) {
	user, err := s.userRepo.GetById(ctx, id)
	if err != nil {
		return nil, errcode.ErrInternalServer
	}
	if user == nil {
		return nil, errcode.ErrUserNotFound
	}
	return user.ToUserInfo(), nil
}
