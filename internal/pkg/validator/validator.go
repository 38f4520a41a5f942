package validator

import (
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"identity-gateway/internal/pkg/xerrors"
)

// CustomValidator wraps go-playground validator for Echo
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(400, err.Error())
	}
	return nil
}

// New creates a new custom validator instance
func New() echo.Validator {
	v := validator.New()

	// 账号密码规则，与提供方的最低要求保持一致。
	// 规则名冲突属于编程错误，启动即失败
	xerrors.Must(v.RegisterValidation("account_password", validateAccountPassword))

	return &CustomValidator{
		validator: v,
	}
}

// validateAccountPassword 验证账号密码格式
// 规则：
// 1. 长度至少 6 字符（提供方下限）
// 2. 不包含控制字符
func validateAccountPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < 6 {
		return false
	}
	for _, r := range password {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
