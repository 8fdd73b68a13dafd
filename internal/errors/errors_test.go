package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// ErrorsTestSuite 错误包测试套件
type ErrorsTestSuite struct {
	suite.Suite
}

// 测试创建新错误
func (suite *ErrorsTestSuite) TestNew() {
	err := New(ErrPhaseName)
	suite.NotNil(err)
	suite.Equal(ErrPhaseName, err.Code)
	suite.Equal("无效的阶段名称", err.Message)
	suite.Empty(err.Details)

	err = New(ErrNotFound, "阶段不存在")
	suite.Equal("阶段不存在", err.Details)

	err = New(ErrPersistWrite, "重命名失败", "路径: ./data/gamestate.json")
	suite.Equal("重命名失败; 路径: ./data/gamestate.json", err.Details)
}

func (suite *ErrorsTestSuite) TestNewf() {
	err := Newf(ErrPhaseName, "无法解析 %q", "DUSK3")
	suite.Equal(ErrPhaseName, err.Code)
	suite.Equal(`无法解析 "DUSK3"`, err.Details)
}

// 测试错误包装
func (suite *ErrorsTestSuite) TestWrap() {
	originalErr := errors.New("disk full")
	wrappedErr := Wrap(originalErr, ErrPersistWrite)
	suite.Equal(ErrPersistWrite, wrappedErr.Code)
	suite.Equal("disk full", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)

	suite.Nil(Wrap(nil, ErrUnknown))

	// 包装已有的AppError，保留原始错误码
	appErr := New(ErrPhaseName, "DAY0")
	wrappedAppErr := Wrap(appErr, ErrPersistRead, "恢复失败")
	suite.Equal(ErrPhaseName, wrappedAppErr.Code)
	suite.Contains(wrappedAppErr.Details, "恢复失败")
	suite.Contains(wrappedAppErr.Details, "DAY0")
}

func (suite *ErrorsTestSuite) TestWrapf() {
	originalErr := errors.New("permission denied")
	wrappedErr := Wrapf(originalErr, ErrPersistWrite, "写入 %s 失败", "gamestate.json")
	suite.Equal("写入 gamestate.json 失败: permission denied", wrappedErr.Details)
	suite.Equal(originalErr, wrappedErr.Cause)
}

// 测试错误码判断（包括被fmt.Errorf包装的情况）
func (suite *ErrorsTestSuite) TestIs() {
	err := New(ErrStoreLocked)
	suite.True(Is(err, ErrStoreLocked))
	suite.False(Is(err, ErrNotFound))
	suite.False(Is(nil, ErrStoreLocked))

	chained := fmt.Errorf("open store: %w", err)
	suite.True(Is(chained, ErrStoreLocked))

	suite.False(Is(errors.New("标准错误"), ErrUnknown))
}

func (suite *ErrorsTestSuite) TestGetCode() {
	suite.Equal(ErrPhaseState, GetCode(New(ErrPhaseState)))
	suite.Equal(ErrUnknown, GetCode(errors.New("标准错误")))
	suite.Equal(ErrorCode(0), GetCode(nil))
}

func (suite *ErrorsTestSuite) TestError() {
	err := &AppError{Code: ErrNotFound, Message: "资源未找到"}
	suite.Equal("[1002] 资源未找到", err.Error())

	err.Details = "NIGHT3"
	suite.Equal("[1002] 资源未找到: NIGHT3", err.Error())
}

func (suite *ErrorsTestSuite) TestUnwrap() {
	originalErr := errors.New("原始错误")
	suite.Equal(originalErr, Wrap(originalErr, ErrUnknown).Unwrap())
	suite.Nil(New(ErrUnknown).Unwrap())
}

func (suite *ErrorsTestSuite) TestWithDetails() {
	err := New(ErrInvalidParam).WithDetails("玩家编号必须为正数")
	suite.Equal("玩家编号必须为正数", err.Details)
}

// 测试HTTP状态码映射
func (suite *ErrorsTestSuite) TestHTTPStatus() {
	testCases := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrInvalidParam, 400},
		{ErrPhaseName, 400},
		{ErrSenderMismatch, 403},
		{ErrNotFound, 404},
		{ErrPhaseNotCurrent, 409},
		{ErrInboxFull, 429},
		{ErrPersistWrite, 503},
		{ErrUnknown, 500},
	}

	for _, tc := range testCases {
		suite.Equal(tc.expected, New(tc.code).HTTPStatus(), "错误码 %d 应该返回HTTP状态码 %d", tc.code, tc.expected)
	}
}

// 测试严重错误判断
func (suite *ErrorsTestSuite) TestIsCritical() {
	for _, code := range []ErrorCode{ErrPhaseName, ErrPersistWrite, ErrStoreLocked, ErrDataIntegrity} {
		suite.True(IsCritical(New(code)), "错误码 %d 应该是严重错误", code)
	}

	for _, code := range []ErrorCode{ErrInvalidParam, ErrNotFound, ErrTimeout, ErrSenderMismatch} {
		suite.False(IsCritical(New(code)), "错误码 %d 不应该是严重错误", code)
	}

	suite.False(IsCritical(nil))
}

func (suite *ErrorsTestSuite) TestStackCapture() {
	err := New(ErrUnknown)
	suite.NotEmpty(err.Stack)
	suite.NotEmpty(err.GetStack())
}

func (suite *ErrorsTestSuite) TestUnknownErrorCode() {
	err := New(ErrorCode(99999))
	suite.Equal(ErrorCode(99999), err.Code)
	suite.Equal("未知错误", err.Message)
}

func TestErrorsSuite(t *testing.T) {
	suite.Run(t, new(ErrorsTestSuite))
}
