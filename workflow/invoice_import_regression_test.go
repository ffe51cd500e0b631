package workflow

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// End-to-end exercise of the import pipeline against real MySQL and Redis
// containers: import -> master article -> ingredient ledger -> recipe ledger,
// then a re-import of the same invoice to verify the same-day overwrite.
//
// Requires docker. Run with:
//
//	INTEGRATION_TESTS=1 go test ./workflow -run TestInvoiceImportEndToEnd
func TestInvoiceImportEndToEnd(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run docker-backed integration tests")
	}

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })
	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "foodcost_test")
	t.Setenv("REDIS_ADDRESS", "127.0.0.1:"+redisPort)

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if err := models.MigrateTable(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	logger := config.GetLogger()

	establishment, err := models.CreateEstablishment(ctx, &models.NewEstablishment{
		Name:                "Demo Bistro",
		ActiveSms:           true,
		TypeSms:             models.SmsTypeFoodAndBeverages,
		SmsVariationTrigger: models.SmsVariationTriggerAll,
	})
	if err != nil {
		t.Fatalf("create establishment: %v", err)
	}

	today := utils.TruncateToDay(time.Now().UTC())
	day1 := today.AddDate(0, 0, -14)
	day2 := today.AddDate(0, 0, -7)

	// First invoice seeds the supplier and the master article at 6.00/kg.
	runImport(t, ctx, logger, establishment.ID, invoicePayload("FAC-1001", day1, "6.00"))

	var masterArticle models.MasterArticle
	err = db.Where("establishment_id = ? AND name LIKE ?", establishment.ID, "Tomate%").
		First(&masterArticle).Error
	if err != nil {
		t.Fatalf("master article not created: %v", err)
	}
	if !masterArticle.CurrentUnitPrice.Equal(decimal.RequireFromString("6.00")) {
		t.Fatalf("expected current unit price 6.00, got %s", masterArticle.CurrentUnitPrice)
	}

	recipe, err := CreateRecipe(ctx, logger, establishment.ID, "Sauce tomate", 4,
		true, true, decimal.RequireFromString("20"), decimal.RequireFromString("22"))
	if err != nil {
		t.Fatalf("create recipe: %v", err)
	}

	ingredient, err := AddIngredient(ctx, logger, establishment.ID, &models.NewIngredient{
		RecipeId:        recipe.ID,
		Variant:         models.IngredientVariantArticle,
		MasterArticleId: &masterArticle.ID,
		Name:            "Tomate grappe",
		Quantity:        decimal.RequireFromString("2"),
		Loss:            decimal.RequireFromString("5"),
	})
	if err != nil {
		t.Fatalf("add ingredient: %v", err)
	}

	// The new line gets a version-1 manual checkpoint: 6.00 * 1.05 * 2 = 12.60.
	entries, err := models.ListIngredientHistory(db, ingredient.ID)
	if err != nil {
		t.Fatalf("list ingredient history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 seeded ledger entry, got %d", len(entries))
	}
	if entries[0].Trigger != models.HistoryTriggerManual {
		t.Fatalf("seed entry must be manual, got %s", entries[0].Trigger)
	}
	if !entries[0].UnitCost.Equal(decimal.RequireFromString("12.60")) {
		t.Fatalf("expected seeded unit cost 12.60, got %s", entries[0].UnitCost)
	}

	// A back-dated invoice at 7.00 lands before the seed checkpoint, so it
	// rewrites the nearest future entry in place: the version survives, the
	// date moves back to the invoice date and the costs become import facts.
	runImport(t, ctx, logger, establishment.ID, invoicePayload("FAC-1002", day2, "7.00"))

	entries, err = models.ListIngredientHistory(db, ingredient.ID)
	if err != nil {
		t.Fatalf("list ingredient history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("back-dated import must overwrite, not append: got %d entries", len(entries))
	}
	corrected := entries[0]
	if corrected.Trigger != models.HistoryTriggerImport {
		t.Fatalf("expected import trigger, got %s", corrected.Trigger)
	}
	if !corrected.Version.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("overwrite must keep version 1, got %s", corrected.Version)
	}
	if !corrected.Date.Equal(day2) {
		t.Fatalf("overwrite must move the entry to the invoice date, got %s", corrected.Date)
	}
	if !corrected.UnitCost.Equal(decimal.RequireFromString("14.70")) {
		t.Fatalf("expected unit cost 14.70 (7.00 * 1.05 * 2), got %s", corrected.UnitCost)
	}
	if corrected.InvoiceId == nil {
		t.Fatal("import entry must carry the invoice id")
	}

	var variation models.Variation
	err = db.Where("establishment_id = ? AND master_article_id = ?", establishment.ID, masterArticle.ID).
		Order("id ASC").First(&variation).Error
	if err != nil {
		t.Fatalf("variation not recorded: %v", err)
	}
	if !variation.OldUnitPrice.Equal(decimal.RequireFromString("6.00")) ||
		!variation.NewUnitPrice.Equal(decimal.RequireFromString("7.00")) {
		t.Fatalf("unexpected variation prices %s -> %s", variation.OldUnitPrice, variation.NewUnitPrice)
	}

	// Re-importing the corrected copy of the same invoice hits the exact-date
	// branch and still does not grow the ledger.
	runImport(t, ctx, logger, establishment.ID, invoicePayload("FAC-1002", day2, "7.00"))

	entries, err = models.ListIngredientHistory(db, ingredient.ID)
	if err != nil {
		t.Fatalf("list ingredient history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("re-import must not append, got %d entries", len(entries))
	}
	if !entries[0].Version.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("re-import must keep version 1, got %s", entries[0].Version)
	}

	// An invoice newer than every ledger entry appends the next version.
	runImport(t, ctx, logger, establishment.ID, invoicePayload("FAC-1003", today, "8.00"))

	entries, err = models.ListIngredientHistory(db, ingredient.ID)
	if err != nil {
		t.Fatalf("list ingredient history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected appended entry, got %d entries", len(entries))
	}
	appended := entries[1]
	if !appended.Version.Equal(decimal.RequireFromString("2")) {
		t.Fatalf("expected version 2, got %s", appended.Version)
	}
	if !appended.UnitCost.Equal(decimal.RequireFromString("16.80")) {
		t.Fatalf("expected unit cost 16.80 (8.00 * 1.05 * 2), got %s", appended.UnitCost)
	}

	updatedRecipe, err := models.GetRecipe(db, establishment.ID, recipe.ID)
	if err != nil {
		t.Fatalf("reload recipe: %v", err)
	}
	if !updatedRecipe.PurchaseCostPerPortion.Equal(decimal.RequireFromString("4.20")) {
		t.Fatalf("expected cost per portion 4.20, got %s", updatedRecipe.PurchaseCostPerPortion)
	}

	reloaded, err := models.GetIngredient(db, establishment.ID, ingredient.ID)
	if err != nil {
		t.Fatalf("reload ingredient: %v", err)
	}
	if !reloaded.UnitCost.Equal(decimal.RequireFromString("16.80")) {
		t.Fatalf("ingredient cache out of sync with ledger: %s", reloaded.UnitCost)
	}
}

func runImport(t *testing.T, ctx context.Context, logger *logrus.Logger, establishmentId string, input *models.InvoiceImportInput) {
	t.Helper()
	var job *models.ImportJob
	err := RunMutation(ctx, logger, establishmentId, func(tx *gorm.DB) error {
		var err error
		job, err = models.CreateImportJob(tx, establishmentId, input, uuid.NewString())
		return err
	})
	if err != nil {
		t.Fatalf("create import job: %v", err)
	}
	if err := RunInvoiceImport(ctx, logger, establishmentId, job.ID); err != nil {
		t.Fatalf("run invoice import %s: %v", input.InvoiceNumber, err)
	}
	finished, err := models.GetImportJob(config.GetDB(), establishmentId, job.ID)
	if err != nil {
		t.Fatalf("reload import job: %v", err)
	}
	if finished.Status != models.ImportJobStatusCompleted {
		t.Fatalf("job %s finished %s: %s", job.ID, finished.Status, finished.ErrorMessage)
	}
}

func invoicePayload(invoiceNumber string, date time.Time, unitPrice string) *models.InvoiceImportInput {
	return &models.InvoiceImportInput{
		SupplierName:  "METRO Cash & Carry SAS",
		SupplierLabel: models.SupplierLabelFood,
		InvoiceNumber: invoiceNumber,
		Date:          date,
		Lines: []*models.InvoiceLineInput{
			{
				ProductName: "Tomate grappe",
				Unit:        "kg",
				Quantity:    decimal.RequireFromString("10"),
				UnitPrice:   decimal.RequireFromString(unitPrice),
			},
		},
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("foodcost-test-redis-%d", time.Now().UnixNano())
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
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("foodcost-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=foodcost_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
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
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
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
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
