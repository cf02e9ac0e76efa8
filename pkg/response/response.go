package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess       = 0
	CodeParamError    = 400
	CodeUnauthorized  = 401
	CodeForbidden     = 403
	CodeNotFound      = 404
	CodeServerError   = 500
	CodeBusinessError = 1000
)

// 业务错误码：与核心错误分类一一对应
const (
	CodeMatchNotFound       = 1001 // 对局不存在
	CodePreconditionFailed  = 1002 // 状态机前置条件不满足（状态冲突、提案过期、窗口已过等）
	CodeBalanceNotEnough    = 1003 // 余额不足
	CodeWalletNotFound      = 1004 // 钱包不存在
	CodeUserNotFound        = 1005 // 用户不存在
	CodeUserSuspended       = 1006 // 用户已被封禁
	CodeNotAuthorized       = 1007 // 调用者与实体无要求的关系或缺少角色
	CodeSettlementConflict  = 1008 // 结算幂等保护触发（已结算/不符合结算条件）
	CodeBetNotFound         = 1009 // 投注不存在
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, code int, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, CodeParamError, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, CodeForbidden, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, CodeServerError, message)
}

func BusinessError(c *gin.Context, code int, message string) {
	Error(c, code, message)
}
