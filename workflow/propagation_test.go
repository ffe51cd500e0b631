package workflow

import (
	"testing"

	"github.com/chefbooks/foodcost_backend/models"
	"github.com/shopspring/decimal"
)

func intPtr(i int) *int { return &i }

func testRecipe(id, portions int, saleable, active bool, salePrice string) *models.Recipe {
	s, a := saleable, active
	return &models.Recipe{
		ID:               id,
		EstablishmentId:  "est-1",
		Portions:         portions,
		Saleable:         &s,
		Active:           &a,
		SalePriceExclTax: v(salePrice),
	}
}

func findRecipeWrite(t *testing.T, plan *propagationPlan, recipeId int) recipeWrite {
	t.Helper()
	for _, write := range plan.Recipes {
		if write.RecipeId == recipeId {
			return write
		}
	}
	t.Fatalf("no recipe write for %d in %+v", recipeId, plan.Recipes)
	return recipeWrite{}
}

func TestPropagateLeafPriceChange(t *testing.T) {
	pizza := testRecipe(1, 1, true, true, "20")
	tomato := &models.Ingredient{
		ID: 10, EstablishmentId: "est-1", RecipeId: 1,
		Variant: models.IngredientVariantArticle, MasterArticleId: intPtr(100),
		Quantity: v("2"), Loss: v("5"),
	}
	graph := newCostGraph("est-1", []*models.Recipe{pizza}, []*models.Ingredient{tomato})

	plan, err := graph.propagate(map[int]decimal.Decimal{10: v("6.00")}, nil)
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}

	if len(plan.Ingredients) != 1 || plan.Ingredients[0].IngredientId != 10 {
		t.Fatalf("expected one ingredient write for 10, got %+v", plan.Ingredients)
	}
	write := findRecipeWrite(t, plan, 1)
	if !write.Total.Equal(v("12.60")) {
		t.Fatalf("expected recipe total 12.60, got %s", write.Total)
	}
	if !write.PerPortion.Equal(v("12.60")) {
		t.Fatalf("expected per-portion 12.60, got %s", write.PerPortion)
	}
	if !write.Margin.Equal(v("37")) {
		t.Fatalf("expected margin 37, got %s", write.Margin)
	}
	if len(plan.Events) != 1 || !plan.Events[0].NewPerPortion.Equal(v("12.60")) {
		t.Fatalf("expected one cost-change event, got %+v", plan.Events)
	}
}

func TestPropagateThroughSubRecipes(t *testing.T) {
	sauce := testRecipe(1, 8, false, true, "0")
	pizza := testRecipe(2, 1, true, true, "12.50")
	tomato := &models.Ingredient{
		ID: 10, EstablishmentId: "est-1", RecipeId: 1,
		Variant: models.IngredientVariantArticle, MasterArticleId: intPtr(100),
		Quantity: v("3"),
	}
	sauceLine := &models.Ingredient{
		ID: 11, EstablishmentId: "est-1", RecipeId: 2,
		Variant: models.IngredientVariantSubRecipe, SubRecipeId: intPtr(1),
		Quantity: v("1"),
	}
	packaging := &models.Ingredient{
		ID: 12, EstablishmentId: "est-1", RecipeId: 2,
		Variant: models.IngredientVariantFixed,
		Quantity: v("1"), GrossUnitPrice: v("0.30"), UnitCost: v("0.30"),
	}
	graph := newCostGraph("est-1",
		[]*models.Recipe{sauce, pizza},
		[]*models.Ingredient{tomato, sauceLine, packaging})

	plan, err := graph.propagate(map[int]decimal.Decimal{10: v("2")}, nil)
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}

	sauceWrite := findRecipeWrite(t, plan, 1)
	if !sauceWrite.Total.Equal(v("6")) || !sauceWrite.PerPortion.Equal(v("0.75")) {
		t.Fatalf("expected sauce 6 / 0.75, got %s / %s", sauceWrite.Total, sauceWrite.PerPortion)
	}
	pizzaWrite := findRecipeWrite(t, plan, 2)
	if !pizzaWrite.Total.Equal(v("1.05")) {
		t.Fatalf("expected pizza total 1.05, got %s", pizzaWrite.Total)
	}
	if !pizzaWrite.ContainsSubRecipe {
		t.Fatal("pizza write must flag contains_sub_recipe")
	}
	if sauceWrite.ContainsSubRecipe {
		t.Fatal("sauce has no sub-recipe lines")
	}

	// the sauce line's cost must have been rewritten from the sauce's new
	// per-portion cost before the pizza total was summed
	var sauceLineWrite *ingredientWrite
	for i := range plan.Ingredients {
		if plan.Ingredients[i].IngredientId == 11 {
			sauceLineWrite = &plan.Ingredients[i]
		}
	}
	if sauceLineWrite == nil || !sauceLineWrite.Gross.Equal(v("0.75")) {
		t.Fatalf("expected sub-recipe line write at gross 0.75, got %+v", plan.Ingredients)
	}

	// children come before parents in the write order
	sauceIdx, pizzaIdx := -1, -1
	for i, write := range plan.Recipes {
		if write.RecipeId == 1 {
			sauceIdx = i
		}
		if write.RecipeId == 2 {
			pizzaIdx = i
		}
	}
	if sauceIdx > pizzaIdx {
		t.Fatalf("sauce must be recomputed before pizza, order %+v", plan.Recipes)
	}
}

func TestPropagateDiamondProcessesEachRecipeOnce(t *testing.T) {
	sauce := testRecipe(1, 4, false, true, "0")
	pizza := testRecipe(2, 1, true, true, "15")
	tomatoInSauce := &models.Ingredient{
		ID: 10, EstablishmentId: "est-1", RecipeId: 1,
		Variant: models.IngredientVariantArticle, MasterArticleId: intPtr(100),
		Quantity: v("2"),
	}
	sauceLine := &models.Ingredient{
		ID: 11, EstablishmentId: "est-1", RecipeId: 2,
		Variant: models.IngredientVariantSubRecipe, SubRecipeId: intPtr(1),
		Quantity: v("1"),
	}
	tomatoInPizza := &models.Ingredient{
		ID: 12, EstablishmentId: "est-1", RecipeId: 2,
		Variant: models.IngredientVariantArticle, MasterArticleId: intPtr(100),
		Quantity: v("1"),
	}
	graph := newCostGraph("est-1",
		[]*models.Recipe{sauce, pizza},
		[]*models.Ingredient{tomatoInSauce, sauceLine, tomatoInPizza})

	plan, err := graph.propagate(map[int]decimal.Decimal{10: v("2"), 12: v("2")}, nil)
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}

	seen := map[int]int{}
	for _, write := range plan.Recipes {
		seen[write.RecipeId]++
	}
	if seen[1] != 1 || seen[2] != 1 {
		t.Fatalf("each recipe must be recomputed exactly once, got %+v", seen)
	}
	// pizza total = sauce per-portion (4/4=1) + direct tomato (2)
	pizzaWrite := findRecipeWrite(t, plan, 2)
	if !pizzaWrite.Total.Equal(v("3")) {
		t.Fatalf("expected pizza total 3, got %s", pizzaWrite.Total)
	}
}

func TestPropagateCycleDetected(t *testing.T) {
	a := testRecipe(1, 1, false, true, "0")
	b := testRecipe(2, 1, false, true, "0")
	aLine := &models.Ingredient{
		ID: 10, EstablishmentId: "est-1", RecipeId: 1,
		Variant: models.IngredientVariantSubRecipe, SubRecipeId: intPtr(2),
		Quantity: v("1"),
	}
	bLine := &models.Ingredient{
		ID: 11, EstablishmentId: "est-1", RecipeId: 2,
		Variant: models.IngredientVariantSubRecipe, SubRecipeId: intPtr(1),
		Quantity: v("1"),
	}
	graph := newCostGraph("est-1", []*models.Recipe{a, b}, []*models.Ingredient{aLine, bLine})

	_, err := graph.propagate(nil, []int{1})
	if err != ErrorCycleDetected {
		t.Fatalf("expected ErrorCycleDetected, got %v", err)
	}
}

func TestPropagateSkipsMarginWhenNotSaleable(t *testing.T) {
	stock := testRecipe(1, 1, false, true, "10")
	stock.Margin = v("40")
	line := &models.Ingredient{
		ID: 10, EstablishmentId: "est-1", RecipeId: 1,
		Variant: models.IngredientVariantArticle, MasterArticleId: intPtr(100),
		Quantity: v("1"),
	}
	graph := newCostGraph("est-1", []*models.Recipe{stock}, []*models.Ingredient{line})

	plan, err := graph.propagate(map[int]decimal.Decimal{10: v("4")}, nil)
	if err != nil {
		t.Fatalf("propagate: %v", err)
	}
	write := findRecipeWrite(t, plan, 1)
	if !write.Total.Equal(v("4")) {
		t.Fatalf("cost must still refresh, got %s", write.Total)
	}
	if !write.Margin.Equal(v("40")) {
		t.Fatalf("margin of a non-saleable recipe must stay untouched, got %s", write.Margin)
	}
}

func TestPropagateUnknownIngredient(t *testing.T) {
	graph := newCostGraph("est-1", nil, nil)
	if _, err := graph.propagate(map[int]decimal.Decimal{99: v("1")}, nil); err == nil {
		t.Fatal("expected an error for an unknown ingredient id")
	}
}
