package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-gateway/internal/pkg/config"
	"identity-gateway/internal/pkg/log"
	"identity-gateway/internal/pkg/xerrors"
)

// fakeIdentity 可编程的身份提供方假实现
type fakeIdentity struct {
	existing map[string]*Account // email -> account
	accounts map[string]*Account // id -> account

	createCalls  int
	signinCalls  int
	customCalls  int
	failCreate   error
	failSignin   error
	failCustom   error
	nextID       string
	grantIDToken string
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		existing:     map[string]*Account{},
		accounts:     map[string]*Account{},
		nextID:       "abcdefghij1234567890",
		grantIDToken: "id-token-1",
	}
}

func (f *fakeIdentity) FindByEmail(_ context.Context, email string) (*Account, bool, error) {
	if acct, ok := f.existing[email]; ok {
		return acct, true, nil
	}
	return nil, false, nil
}

func (f *fakeIdentity) CreateAccount(_ context.Context, params CreateAccountParams) (*Account, error) {
	f.createCalls++
	if f.failCreate != nil {
		return nil, f.failCreate
	}
	acct := &Account{
		ID:          f.nextID,
		Email:       params.Email,
		DisplayName: params.DisplayName,
		PhotoURL:    params.PhotoURL,
	}
	f.existing[params.Email] = acct
	f.accounts[acct.ID] = acct
	return acct, nil
}

func (f *fakeIdentity) GetAccount(_ context.Context, id string) (*Account, error) {
	if acct, ok := f.accounts[id]; ok {
		return acct, nil
	}
	return nil, xerrors.FromCode(xerrors.CodeAccountNotFound)
}

func (f *fakeIdentity) UpdateAccount(_ context.Context, id string, params UpdateAccountParams) error {
	acct, ok := f.accounts[id]
	if !ok {
		return xerrors.FromCode(xerrors.CodeAccountNotFound)
	}
	if params.DisplayName != nil {
		acct.DisplayName = *params.DisplayName
	}
	if params.PhotoURL != nil {
		acct.PhotoURL = *params.PhotoURL
	}
	return nil
}

func (f *fakeIdentity) VerifyPassword(_ context.Context, email, _ string) (*PasswordGrant, error) {
	f.signinCalls++
	if f.failSignin != nil {
		return nil, f.failSignin
	}
	acct, ok := f.existing[email]
	if !ok {
		return nil, xerrors.NewInvalidCredentialsError("unknown email")
	}
	return &PasswordGrant{SubjectID: acct.ID, IDToken: f.grantIDToken}, nil
}

func (f *fakeIdentity) CreateCustomToken(_ context.Context, _ string) (string, error) {
	f.customCalls++
	if f.failCustom != nil {
		return "", f.failCustom
	}
	return "custom-token-1", nil
}

// fakeStorage 可编程的存储假实现
type fakeStorage struct {
	uploadCalls int
	failUpload  error
	lastKey     string
}

func (f *fakeStorage) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	f.uploadCalls++
	f.lastKey = key
	if f.failUpload != nil {
		return "", f.failUpload
	}
	return "https://storage.example.com/bucket/" + key, nil
}

func newService(identity *fakeIdentity, storage *fakeStorage, opts ...func(*config.Config)) *AuthService {
	cfg := &config.Config{
		PhotoFailureMode:   config.PhotoFailureDegrade,
		RegisterAutoSignin: false,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return NewAuthService(identity, storage, cfg, log.GetLogger())
}

func withAutoSignin(cfg *config.Config) { cfg.RegisterAutoSignin = true }
func withAbortMode(cfg *config.Config)  { cfg.PhotoFailureMode = config.PhotoFailureAbort }

func TestFormatUserID(t *testing.T) {
	// 内部标识 >= 10 个字符时截取前 10 个
	assert.Equal(t, "user-abcdefghij", FormatUserID("abcdefghij1234567890"))
	// 恰好 10 个字符
	assert.Equal(t, "user-abcdefghij", FormatUserID("abcdefghij"))
	// 不足 10 个字符时取全部，产生更短的标识也是约定行为
	assert.Equal(t, "user-abc", FormatUserID("abc"))
	assert.Equal(t, "user-", FormatUserID(""))
}

func TestRegisterSuccess(t *testing.T) {
	identity := newFakeIdentity()
	storage := &fakeStorage{}
	svc := newService(identity, storage)

	result, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
	})

	require.NoError(t, err)
	assert.Equal(t, "User Created", result.Message)
	assert.Nil(t, result.Login)
	assert.Equal(t, 1, identity.createCalls)
	assert.Equal(t, 0, storage.uploadCalls)
}

func TestRegisterDuplicateEmailDoesNotCreate(t *testing.T) {
	identity := newFakeIdentity()
	identity.existing["a@x.com"] = &Account{ID: "existing-id", Email: "a@x.com"}
	svc := newService(identity, &fakeStorage{})

	_, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
	})

	require.Error(t, err)
	appErr := xerrors.AsAppError(err)
	assert.Equal(t, xerrors.CodeEmailExists, appErr.Code)
	assert.Equal(t, "Email already registered", appErr.Message)
	assert.Equal(t, 0, identity.createCalls)
}

func TestRegisterPhotoTooLargeRejectedBeforeUpload(t *testing.T) {
	identity := newFakeIdentity()
	storage := &fakeStorage{}
	svc := newService(identity, storage)

	_, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
		Photo: &PhotoUpload{
			Filename: "huge.jpg",
			Data:     bytes.Repeat([]byte{0xff}, 1<<20+1),
		},
	})

	require.Error(t, err)
	appErr := xerrors.AsAppError(err)
	assert.Equal(t, xerrors.CodePhotoTooLarge, appErr.Code)
	// 校验在任何上传和创建之前完成
	assert.Equal(t, 0, storage.uploadCalls)
	assert.Equal(t, 0, identity.createCalls)
}

func TestRegisterPhotoBadExtensionRejectedBeforeUpload(t *testing.T) {
	identity := newFakeIdentity()
	storage := &fakeStorage{}
	svc := newService(identity, storage)

	_, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
		Photo: &PhotoUpload{Filename: "evil.gif", Data: []byte("gif")},
	})

	require.Error(t, err)
	appErr := xerrors.AsAppError(err)
	assert.Equal(t, xerrors.CodePhotoBadExtension, appErr.Code)
	assert.Equal(t, "Only .jpg and .png files are allowed", appErr.Message)
	assert.Equal(t, 0, storage.uploadCalls)
	assert.Equal(t, 0, identity.createCalls)
}

func TestRegisterPhotoExtensionCaseInsensitive(t *testing.T) {
	identity := newFakeIdentity()
	storage := &fakeStorage{}
	svc := newService(identity, storage)

	_, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
		Photo: &PhotoUpload{Filename: "AVATAR.JPG", Data: []byte("jpg")},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, storage.uploadCalls)
	// 存储 key 固定在 profile_photos/ 命名空间下，扩展名规范化为小写
	assert.Contains(t, storage.lastKey, "profile_photos/")
	assert.Contains(t, storage.lastKey, ".jpg")
}

func TestRegisterPhotoAttachedToAccount(t *testing.T) {
	identity := newFakeIdentity()
	storage := &fakeStorage{}
	svc := newService(identity, storage)

	_, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
		Photo: &PhotoUpload{Filename: "me.png", Data: []byte("png"), ContentType: "image/png"},
	})

	require.NoError(t, err)
	acct := identity.existing["a@x.com"]
	require.NotNil(t, acct)
	assert.Contains(t, acct.PhotoURL, "https://storage.example.com/bucket/profile_photos/")
}

func TestRegisterPhotoUploadFailureDegrades(t *testing.T) {
	identity := newFakeIdentity()
	storage := &fakeStorage{failUpload: xerrors.NewStorageError("Upload", errors.New("boom"))}
	svc := newService(identity, storage)

	result, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
		Photo: &PhotoUpload{Filename: "me.jpg", Data: []byte("jpg")},
	})

	// 降级策略: 账号照建，文案说明照片没存上
	require.NoError(t, err)
	assert.Equal(t, "User Created, but photo upload failed", result.Message)
	assert.Equal(t, 1, identity.createCalls)
	assert.Empty(t, identity.existing["a@x.com"].PhotoURL)
}

func TestRegisterPhotoUploadFailureAborts(t *testing.T) {
	identity := newFakeIdentity()
	storage := &fakeStorage{failUpload: xerrors.NewStorageError("Upload", errors.New("boom"))}
	svc := newService(identity, storage, withAbortMode)

	_, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
		Photo: &PhotoUpload{Filename: "me.jpg", Data: []byte("jpg")},
	})

	// 中止策略: 上传在创建之前，失败时不会留下半个账号
	require.Error(t, err)
	assert.Equal(t, xerrors.CodeStorageError, xerrors.AsAppError(err).Code)
	assert.Equal(t, 0, identity.createCalls)

	// 同一请求重试可以成功（幂等性）
	storage.failUpload = nil
	_, err = svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
		Photo: &PhotoUpload{Filename: "me.jpg", Data: []byte("jpg")},
	})
	require.NoError(t, err)
}

func TestRegisterAutoSigninReturnsLoginResult(t *testing.T) {
	identity := newFakeIdentity()
	svc := newService(identity, &fakeStorage{}, withAutoSignin)

	result, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Login)
	assert.Equal(t, "user-abcdefghij", result.Login.UserID)
	assert.Equal(t, "id-token-1", result.Login.Token)
	assert.True(t, result.Login.SignedIn)
	assert.Equal(t, "User Created", result.Message)
}

func TestRegisterAutoSigninFallsBackToCustomToken(t *testing.T) {
	identity := newFakeIdentity()
	identity.failSignin = xerrors.NewProviderTimeoutError("signIn", errors.New("timeout"))
	svc := newService(identity, &fakeStorage{}, withAutoSignin)

	result, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
	})

	require.NoError(t, err)
	require.NotNil(t, result.Login)
	assert.Equal(t, "custom-token-1", result.Login.Token)
	assert.Equal(t, 1, identity.customCalls)
}

func TestRegisterAutoSigninFailureDoesNotFailRegistration(t *testing.T) {
	identity := newFakeIdentity()
	identity.failSignin = xerrors.NewProviderTimeoutError("signIn", errors.New("timeout"))
	identity.failCustom = errors.New("no signer")
	svc := newService(identity, &fakeStorage{}, withAutoSignin)

	result, err := svc.Register(context.Background(), RegisterParams{
		Name: "Ann", Email: "a@x.com", Password: "secret1",
	})

	require.NoError(t, err)
	assert.Equal(t, "User Created", result.Message)
	assert.Nil(t, result.Login)
}

func TestLoginSuccess(t *testing.T) {
	identity := newFakeIdentity()
	identity.existing["a@x.com"] = &Account{
		ID: "abcdefghij1234567890", Email: "a@x.com",
		DisplayName: "Ann", PhotoURL: "https://cdn.example.com/p.jpg",
	}
	identity.accounts["abcdefghij1234567890"] = identity.existing["a@x.com"]
	svc := newService(identity, &fakeStorage{})

	result, err := svc.Login(context.Background(), "a@x.com", "secret1")

	require.NoError(t, err)
	assert.Equal(t, "user-abcdefghij", result.UserID)
	assert.Equal(t, "Ann", result.Name)
	// 返回密码验证签发的令牌，不是管理端另造的
	assert.Equal(t, "id-token-1", result.Token)
	assert.Equal(t, "https://cdn.example.com/p.jpg", result.PhotoURL)
	assert.True(t, result.SignedIn)
	assert.Equal(t, 0, identity.customCalls)
}

func TestLoginShortProviderID(t *testing.T) {
	identity := newFakeIdentity()
	identity.existing["a@x.com"] = &Account{ID: "abc", Email: "a@x.com"}
	identity.accounts["abc"] = identity.existing["a@x.com"]
	svc := newService(identity, &fakeStorage{})

	result, err := svc.Login(context.Background(), "a@x.com", "secret1")

	require.NoError(t, err)
	assert.Equal(t, "user-abc", result.UserID)
}

func TestLoginInvalidCredentialsCollapsed(t *testing.T) {
	identity := newFakeIdentity()
	identity.existing["a@x.com"] = &Account{ID: "abcdefghij", Email: "a@x.com"}
	svc := newService(identity, &fakeStorage{})

	// 未知邮箱
	_, errUnknown := svc.Login(context.Background(), "nobody@x.com", "whatever")
	// 密码错(假实现对已知邮箱也按提供方折叠返回)
	identity.failSignin = xerrors.NewInvalidCredentialsError("wrong password")
	_, errWrongPwd := svc.Login(context.Background(), "a@x.com", "wrong")

	// 两种失败对调用方完全不可区分
	appErr1 := xerrors.AsAppError(errUnknown)
	appErr2 := xerrors.AsAppError(errWrongPwd)
	assert.Equal(t, xerrors.CodeInvalidCredentials, appErr1.Code)
	assert.Equal(t, appErr1.Code, appErr2.Code)
	assert.Equal(t, appErr1.Message, appErr2.Message)
	assert.Equal(t, "Invalid email or password", appErr1.Message)
}

func TestLoginAccountVanishedAfterGrantIsInvalidCredentials(t *testing.T) {
	identity := newFakeIdentity()
	// 凭据验证通过，但资料查询时账号已被删除
	identity.existing["a@x.com"] = &Account{ID: "abcdefghij", Email: "a@x.com"}
	svc := newService(identity, &fakeStorage{})

	_, err := svc.Login(context.Background(), "a@x.com", "secret1")

	require.Error(t, err)
	appErr := xerrors.AsAppError(err)
	assert.Equal(t, xerrors.CodeInvalidCredentials, appErr.Code)
	assert.Equal(t, "Invalid email or password", appErr.Message)
}

func TestGetProfileSuccess(t *testing.T) {
	identity := newFakeIdentity()
	identity.accounts["subject-1"] = &Account{ID: "subject-1", DisplayName: "Ann"}
	svc := newService(identity, &fakeStorage{})

	result, err := svc.GetProfile(context.Background(), "subject-1")

	require.NoError(t, err)
	assert.Equal(t, "Ann", result.Name)
	// 缺失的照片 URL 规范化为空字符串
	assert.Equal(t, "", result.PhotoURL)
}

func TestGetProfileAccountGoneIsInvalidToken(t *testing.T) {
	identity := newFakeIdentity()
	svc := newService(identity, &fakeStorage{})

	_, err := svc.GetProfile(context.Background(), "ghost")

	require.Error(t, err)
	assert.Equal(t, xerrors.CodeInvalidToken, xerrors.AsAppError(err).Code)
}
