package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/sitebooks_backend/config"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models"
	"bitbucket.org/mmdatafocus/sitebooks_backend/models/reports"
	"bitbucket.org/mmdatafocus/sitebooks_backend/workflow"
	"github.com/stretchr/testify/require"
)

// Two service instances reconciling the same project-day against MySQL, with
// only Redis locks between them, must still leave a single correct row.
//
// Run (requires Docker): INTEGRATION_TESTS=1 go test ./workflow -run Integration -v
func TestIntegration_CrossInstanceReconcile(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}
	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })
	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	logger := config.NewLogger("error")
	db, err := config.ConnectDatabaseWithRetry(ctx, config.DatabaseSettings{
		User:         "root",
		Password:     "testpw",
		Host:         "127.0.0.1",
		Port:         mysqlPort,
		Name:         "sitebooks_test",
		MaxOpenConns: 20,
		MaxIdleConns: 5,
		MaxAttempts:  10,
	})
	require.NoError(t, err)
	require.NoError(t, models.MigrateTable(db))
	rdb, locker, err := config.ConnectRedisWithRetry(ctx, config.RedisSettings{Address: "127.0.0.1:" + redisPort}, 10)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	store := models.NewStore(db, logger)
	instances := []*workflow.Reconciler{
		workflow.NewReconciler(store, workflow.NewSummaryLocks(locker, logger), nil, logger),
		workflow.NewReconciler(store, workflow.NewSummaryLocks(locker, logger), nil, logger),
	}

	p, err := store.CreateProject(ctx, &models.NewProject{Name: "Tower A"})
	require.NoError(t, err)
	w, err := store.CreateWorker(ctx, &models.NewWorker{Name: "Ahmad"})
	require.NoError(t, err)
	_, err = store.CreateFundTransfer(ctx, &models.NewFundTransfer{ProjectId: p.ID, Amount: dec("1000"), TransferDate: day1})
	require.NoError(t, err)
	_, err = store.CreateWorkerAttendance(ctx, &models.NewWorkerAttendance{
		ProjectId:      p.ID,
		WorkerId:       w.ID,
		AttendanceDate: day1,
		DailyWage:      dec("250"),
		PaidAmount:     dec("250"),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(r *workflow.Reconciler) {
			defer wg.Done()
			_, err := r.Reconcile(ctx, p.ID, day1)
			errs <- err
		}(instances[i%2])
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rows, err := store.ListDailySummaries(ctx, p.ID, "", "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	requireDecimal(t, "750", rows[0].RemainingBalance)

	// statements are served from Redis until flushed
	cache := reports.NewReportCache(rdb, time.Minute, logger)
	builder := reports.NewBuilder(store, cache, logger)
	query := reports.WorkerStatementQuery{WorkerId: w.ID, ProjectIds: []string{p.ID}, DateFrom: day1, DateTo: day3}
	first, err := builder.BuildWorkerStatement(ctx, query)
	require.NoError(t, err)
	requireDecimal(t, "250", first.Totals.TotalEarned)

	_, err = store.CreateWorkerAttendance(ctx, &models.NewWorkerAttendance{
		ProjectId:      p.ID,
		WorkerId:       w.ID,
		AttendanceDate: day2,
		DailyWage:      dec("250"),
		PaymentType:    models.PaymentTypeCredit,
	})
	require.NoError(t, err)

	cached, err := builder.BuildWorkerStatement(ctx, query)
	require.NoError(t, err)
	requireDecimal(t, "250", cached.Totals.TotalEarned)

	require.NoError(t, cache.Flush(ctx))
	fresh, err := builder.BuildWorkerStatement(ctx, query)
	require.NoError(t, err)
	requireDecimal(t, "500", fresh.Totals.TotalEarned)
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("sitebooks-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "redis-cli", "ping"); err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("sitebooks-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=sitebooks_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent"); err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// e.g. "127.0.0.1:49154\n"
	m := regexp.MustCompile(`:(\d+)`).FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	b, err := exec.Command("docker", args...).CombinedOutput()
	return string(b), err
}
