package service

import "errors"

// 服务层错误分类
// 仓储层的 ErrMatchStatusConflict / ErrBalanceNotEnough / ErrSettlementExecuted
// 等哨兵错误会原样向上传递，这里只补充仓储表达不了的业务判断
var (
	ErrInvalidAmount         = errors.New("金额必须为正数且最多两位小数")
	ErrUserSuspended         = errors.New("用户已被封禁，禁止资金操作")
	ErrNotParticipant        = errors.New("调用者不是对局参与者")
	ErrNotCreator            = errors.New("只有对局创建者可以执行该操作")
	ErrOwnMatch              = errors.New("不能加入自己创建的对局")
	ErrWinnerNotPlayer       = errors.New("胜者必须是对局双方之一")
	ErrNoProposal            = errors.New("没有待处理的改注提案")
	ErrProposalPending       = errors.New("已存在待处理的改注提案")
	ErrNotAdmin              = errors.New("需要管理员权限")
	ErrSpectatorIsPlayer     = errors.New("对局参与者不能观战下注")
	ErrMatchNotLive          = errors.New("对局不在进行中，无法下注")
	ErrDisputeWindowClosed   = errors.New("争议窗口已关闭")
	ErrDisputeNotAllowed     = errors.New("当前状态不允许发起争议")
	ErrResolutionRequired    = errors.New("裁决说明不能为空")
	ErrSettlementNotEligible = errors.New("对局不满足结算条件")
	ErrDepositPurposeInvalid = errors.New("只允许充值到个人或观战钱包")
)
