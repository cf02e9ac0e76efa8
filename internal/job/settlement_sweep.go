package job

import (
	"context"
	"log"
	"time"

	"wagerhub/internal/config"
	"wagerhub/internal/service"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SettlementSweepJob 定时结算任务
//
// 每轮扫描"审核通过、无争议、争议窗口已过、尚未结算"的对局并逐局结算。
// 窗口判断是纯时间戳比较，不依赖内存定时器：进程重启后下一轮扫描
// 自然接上，不会丢结算也不会提前结算。
// 单局失败只记日志，下一轮扫描基于持久化状态自动重试。
type SettlementSweepJob struct {
	settlementService *service.SettlementService
	stopCh            chan struct{}
	interval          time.Duration
}

func NewSettlementSweepJob(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *SettlementSweepJob {
	interval := time.Duration(cfg.Business.SettleIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SettlementSweepJob{
		settlementService: service.NewSettlementService(db, redisClient, cfg),
		stopCh:            make(chan struct{}),
		interval:          interval,
	}
}

func (j *SettlementSweepJob) Start(ctx context.Context) {
	log.Println("[SettlementSweepJob] 结算扫描任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[SettlementSweepJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[SettlementSweepJob] 任务停止")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *SettlementSweepJob) Stop() {
	close(j.stopCh)
}

func (j *SettlementSweepJob) sweep(ctx context.Context) {
	settled, err := j.settlementService.SettleDueMatches(ctx)
	if err != nil {
		log.Printf("[SettlementSweepJob] 查询可结算对局失败: %v", err)
		return
	}
	if settled > 0 {
		log.Printf("[SettlementSweepJob] 本轮结算 %d 个对局", settled)
	}
}
