package services

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"studiomanager_go/config"
	"studiomanager_go/database"
	"studiomanager_go/models"
	"studiomanager_go/utils"
)

const (
	overallStatusOK       = "ok"
	overallStatusDegraded = "degraded"
	overallStatusCritical = "critical"

	dependencyStatusUp       = "up"
	dependencyStatusDown     = "down"
	dependencyStatusDisabled = "disabled"

	defaultServiceName = "Studio Manager API"
	defaultVersion     = "1.0.0"
	defaultTimeout     = 1500 * time.Millisecond

	// A growing pile of past confirmed appointments means the nightly
	// sweep is not keeping up and credits are not being deducted.
	sweepBacklogWarn = 50
)

// HealthService aggregates application health for the /health endpoint.
type HealthService struct {
	serviceName string
	version     string
	startTime   time.Time
	timeout     time.Duration
}

// HealthReport is the JSON response of the health endpoint.
type HealthReport struct {
	Status        string             `json:"status"`
	Service       string             `json:"service"`
	Version       string             `json:"version"`
	Environment   string             `json:"environment"`
	Time          time.Time          `json:"time"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	UptimeHuman   string             `json:"uptime_human"`
	Dependencies  []DependencyStatus `json:"dependencies"`
	Workload      *WorkloadSnapshot  `json:"workload,omitempty"`
	Runtime       RuntimeInfo        `json:"runtime"`
}

// DependencyStatus captures the health of a single external dependency.
type DependencyStatus struct {
	Name      string                 `json:"name"`
	Status    string                 `json:"status"`
	LatencyMs int64                  `json:"latency_ms"`
	Error     string                 `json:"error,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// WorkloadSnapshot gives operators a quick read on tenant activity:
// how many studios are live, how much lead follow-up is open, and
// whether the appointment sweep is falling behind.
type WorkloadSnapshot struct {
	ActiveStudios     int64 `json:"active_studios"`
	OpenLeads         int64 `json:"open_leads"`
	AppointmentsToday int64 `json:"appointments_today"`
	SweepBacklog      int64 `json:"sweep_backlog"`
}

// RuntimeInfo exposes basic process diagnostics.
type RuntimeInfo struct {
	GoVersion      string `json:"go_version"`
	Goroutines     int    `json:"goroutines"`
	HeapAllocBytes uint64 `json:"heap_alloc_bytes"`
}

func NewHealthService(serviceName, version string) *HealthService {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = defaultServiceName
	}
	if strings.TrimSpace(version) == "" {
		version = defaultVersion
	}

	return &HealthService{
		serviceName: serviceName,
		version:     version,
		startTime:   time.Now(),
		timeout:     defaultTimeout,
	}
}

// GetHealthReport collects the current health information.
func (s *HealthService) GetHealthReport() HealthReport {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	report := HealthReport{
		Status:      overallStatusOK,
		Service:     s.serviceName,
		Version:     s.version,
		Environment: currentEnvironment(),
		Time:        time.Now().UTC(),
	}

	uptime := time.Since(s.startTime)
	if uptime < 0 {
		uptime = 0
	}
	report.UptimeSeconds = uptime.Seconds()
	report.UptimeHuman = humanizeDuration(uptime)

	var deps []DependencyStatus

	dbDep, dbStatus := s.checkDatabase(ctx)
	deps = append(deps, *dbDep)
	report.Status = combineStatus(report.Status, dbStatus)

	redisDep, redisStatus := s.checkRedis(ctx)
	deps = append(deps, *redisDep)
	report.Status = combineStatus(report.Status, redisStatus)

	if dbDep.Status == dependencyStatusUp {
		workload, workloadStatus := collectWorkload()
		report.Workload = workload
		report.Status = combineStatus(report.Status, workloadStatus)
	}

	report.Dependencies = deps

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	report.Runtime = RuntimeInfo{
		GoVersion:      runtime.Version(),
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
	}

	return report
}

// HTTPStatusForOverall maps a health status to an HTTP status code.
func (s *HealthService) HTTPStatusForOverall(status string) int {
	switch status {
	case overallStatusCritical:
		return 503
	default:
		return 200
	}
}

func (s *HealthService) checkDatabase(ctx context.Context) (*DependencyStatus, string) {
	dep := &DependencyStatus{Name: "database"}

	if database.DB == nil {
		dep.Status = dependencyStatusDown
		dep.Error = "database connection not initialised"
		return dep, overallStatusCritical
	}

	sqlDB, err := database.DB.DB()
	if err != nil {
		dep.Status = dependencyStatusDown
		dep.Error = fmt.Sprintf("sql DB handle error: %v", err)
		return dep, overallStatusCritical
	}

	pingCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
	start := time.Now()
	err = sqlDB.PingContext(pingCtx)
	cancel()
	dep.LatencyMs = time.Since(start).Milliseconds()

	if err != nil {
		dep.Status = dependencyStatusDown
		dep.Error = err.Error()
		return dep, overallStatusCritical
	}

	dep.Status = dependencyStatusUp
	stats := sqlDB.Stats()
	dep.Details = map[string]interface{}{
		"open_connections": stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
	}

	return dep, overallStatusOK
}

func (s *HealthService) checkRedis(ctx context.Context) (*DependencyStatus, string) {
	dep := &DependencyStatus{Name: "redis"}

	client := database.GetRedisClient()
	useRedis := config.AppConfig != nil && config.AppConfig.UseRedisNotifications

	if client == nil {
		if useRedis {
			dep.Status = dependencyStatusDown
			dep.Error = "redis client not initialised"
			return dep, overallStatusDegraded
		}
		dep.Status = dependencyStatusDisabled
		return dep, overallStatusOK
	}

	pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	start := time.Now()
	res := client.Ping(pingCtx)
	cancel()
	dep.LatencyMs = time.Since(start).Milliseconds()

	if err := res.Err(); err != nil {
		dep.Status = dependencyStatusDown
		dep.Error = err.Error()
		if useRedis {
			return dep, overallStatusDegraded
		}
		return dep, overallStatusOK
	}

	dep.Status = dependencyStatusUp
	mode := "optional"
	if useRedis {
		mode = "notifications"
	}
	dep.Details = map[string]interface{}{
		"address": client.Options().Addr,
		"mode":    mode,
	}

	return dep, overallStatusOK
}

// collectWorkload reads a few cheap counts off the primary tables. Count
// failures leave the field at zero rather than failing the whole report.
func collectWorkload() (*WorkloadSnapshot, string) {
	snapshot := &WorkloadSnapshot{}
	today := utils.StartOfDay(time.Now())

	database.DB.Model(&models.Studio{}).
		Where("active = ?", true).
		Count(&snapshot.ActiveStudios)

	database.DB.Model(&models.Lead{}).
		Where("status NOT IN ?", []string{"converted", "lost"}).
		Count(&snapshot.OpenLeads)

	database.DB.Model(&models.Appointment{}).
		Where("appointment_date = ? AND status IN ?", today,
			[]string{models.StatusPending, models.StatusConfirmed}).
		Count(&snapshot.AppointmentsToday)

	database.DB.Model(&models.Appointment{}).
		Where("appointment_date < ? AND status = ?", today, models.StatusConfirmed).
		Count(&snapshot.SweepBacklog)

	if snapshot.SweepBacklog > sweepBacklogWarn {
		return snapshot, overallStatusDegraded
	}
	return snapshot, overallStatusOK
}

func currentEnvironment() string {
	if config.AppConfig == nil {
		return "unknown"
	}
	env := strings.TrimSpace(config.AppConfig.AppEnv)
	if env == "" {
		return "unknown"
	}
	return env
}

func combineStatus(current, candidate string) string {
	order := map[string]int{
		overallStatusOK:       0,
		overallStatusDegraded: 1,
		overallStatusCritical: 2,
	}

	if _, ok := order[current]; !ok {
		current = overallStatusOK
	}

	if v, ok := order[candidate]; ok && v > order[current] {
		return candidate
	}
	return current
}

func humanizeDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}

	d = d.Round(time.Second)
	days := d / (24 * time.Hour)
	d %= 24 * time.Hour
	hours := d / time.Hour
	d %= time.Hour
	minutes := d / time.Minute
	d %= time.Minute
	seconds := d / time.Second

	parts := []string{}
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}

	return strings.Join(parts, " ")
}
