package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ============================================================================
// 分布式锁实现
// ============================================================================
//
// 【为什么需要分布式锁？】
//
// 场景：同一个 WAITING 对局同时收到两个加入请求
//
// 如果没有分布式锁：
//   goroutine1: 读到 WAITING -> 托管资金 -> 设置 player2
//   goroutine2: 读到 WAITING -> 托管资金 -> 覆盖 player2  两边都扣了钱！
//
// 加锁之后只有一个请求能进入临界区，另一个拿到最新状态后直接失败。
// 数据库层还有 CAS 条件更新兜底，锁负责把无谓的扣款重试挡在外面。
//
// 【Redis 分布式锁原理】
//
// 加锁：SET key value NX EX timeout
//   - NX: 只有 key 不存在时才设置（保证互斥）
//   - EX: 设置过期时间（防止死锁）
//   - value: 锁持有者标识（释放时验证，防止误删别人的锁）
//
// 释放锁：Lua 脚本保证"检查+删除"的原子性
//
// ============================================================================

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期")
)

// DistributedLock 分布式锁
type DistributedLock struct {
	client     *redis.Client
	key        string        // 锁的 key
	value      string        // 锁的 value（用于验证锁的持有者）
	expiration time.Duration // 锁的过期时间
}

// NewDistributedLock 创建分布式锁
func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 尝试获取锁（非阻塞）
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	success, err := l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
	if err != nil {
		return false, err
	}
	return success, nil
}

// Lock 阻塞式获取锁（带重试）
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
			// 继续重试
		}
	}
	return ErrLockFailed
}

// Unlock 释放锁
// 先校验 value 是自己的再删除，避免误删其他持有者的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	_, err := l.client.Eval(ctx, script, []string{l.key}, l.value).Result()
	return err
}

// ============================================================================
// 便捷函数：按实体维度的锁
// ============================================================================

// NewMatchLock 创建对局锁（按对局维度）
//
// 加入、接受提案、上报、争议、结算全部竞争同一把锁：
// 同一对局的状态迁移串行执行，不同对局互不影响。
// 结算扫描任务和"发起争议"抢的也是这把锁，保证两者不会交错动账。
func NewMatchLock(client *redis.Client, matchID string, holder string) *DistributedLock {
	key := fmt.Sprintf("match:lock:%s", matchID)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}

// NewWalletLock 创建钱包锁（按用户维度）
//
// 同一用户的充值/提现/下注/建局不并发，不同用户互不影响
func NewWalletLock(client *redis.Client, userID int64, holder string) *DistributedLock {
	key := fmt.Sprintf("wallet:lock:user:%d", userID)
	return NewDistributedLock(client, key, holder, 30*time.Second)
}
