package workflow

import (
	"errors"
	"sort"
	"time"

	"github.com/chefbooks/foodcost_backend/config"
	"github.com/chefbooks/foodcost_backend/models"
	"github.com/chefbooks/foodcost_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ErrorCycleDetected aborts a propagation run when the recipe graph turns out
// to be cyclic. The graph is expected to be acyclic; this is a hard failure,
// not a condition to recover from.
var ErrorCycleDetected = errors.New("recipe graph contains a cycle")

// costGraph is an in-memory snapshot of one establishment's recipe graph.
// The propagation planner mutates the snapshot and emits a write plan; it
// never touches the database itself.
type costGraph struct {
	establishmentId string
	recipes         map[int]*models.Recipe
	ingredients     map[int]*models.Ingredient
	byRecipe        map[int][]int // recipe id -> its ingredient ids
	parents         map[int][]int // child recipe id -> SUBRECIPE ingredient ids referencing it
}

type ingredientWrite struct {
	IngredientId int
	Gross        decimal.Decimal
}

type recipeWrite struct {
	RecipeId          int
	Total             decimal.Decimal
	PerPortion        decimal.Decimal
	Margin            decimal.Decimal
	ContainsSubRecipe bool
}

// recipeCostChanged is emitted for every recipe whose per-portion cost moved.
type recipeCostChanged struct {
	RecipeId      int
	OldPerPortion decimal.Decimal
	NewPerPortion decimal.Decimal
}

type propagationPlan struct {
	Ingredients []ingredientWrite
	Recipes     []recipeWrite
	Events      []recipeCostChanged
}

func newCostGraph(establishmentId string, recipes []*models.Recipe, ingredients []*models.Ingredient) *costGraph {
	graph := &costGraph{
		establishmentId: establishmentId,
		recipes:         make(map[int]*models.Recipe, len(recipes)),
		ingredients:     make(map[int]*models.Ingredient, len(ingredients)),
		byRecipe:        make(map[int][]int),
		parents:         make(map[int][]int),
	}
	for _, recipe := range recipes {
		graph.recipes[recipe.ID] = recipe
	}
	for _, ingredient := range ingredients {
		graph.ingredients[ingredient.ID] = ingredient
		graph.byRecipe[ingredient.RecipeId] = append(graph.byRecipe[ingredient.RecipeId], ingredient.ID)
		if ingredient.Variant == models.IngredientVariantSubRecipe && ingredient.SubRecipeId != nil {
			graph.parents[*ingredient.SubRecipeId] = append(graph.parents[*ingredient.SubRecipeId], ingredient.ID)
		}
	}
	return graph
}

func loadCostGraph(tx *gorm.DB, establishmentId string) (*costGraph, error) {
	recipes, err := utils.FetchAllPaginated[models.Recipe](
		tx.Model(&models.Recipe{}).Where("establishment_id = ?", establishmentId).Order("id ASC"),
		config.FetchLimit)
	if err != nil {
		return nil, err
	}
	ingredients, err := utils.FetchAllPaginated[models.Ingredient](
		tx.Model(&models.Ingredient{}).Where("establishment_id = ?", establishmentId).Order("id ASC"),
		config.FetchLimit)
	if err != nil {
		return nil, err
	}
	return newCostGraph(establishmentId, recipes, ingredients), nil
}

// affectedRecipes is the upward closure over SUBRECIPE edges from the seed
// recipes: every recipe whose cost can change when a seed changes.
func (g *costGraph) affectedRecipes(seeds map[int]bool) map[int]bool {
	affected := make(map[int]bool, len(seeds))
	worklist := make([]int, 0, len(seeds))
	for id := range seeds {
		affected[id] = true
		worklist = append(worklist, id)
	}
	for len(worklist) > 0 {
		recipeId := worklist[0]
		worklist = worklist[1:]
		for _, ingredientId := range g.parents[recipeId] {
			parent := g.ingredients[ingredientId].RecipeId
			if !affected[parent] {
				affected[parent] = true
				worklist = append(worklist, parent)
			}
		}
	}
	return affected
}

// topoOrder sorts the affected recipes children-first so every recipe is
// recomputed after all of its affected sub-recipes. A recipe revisited while
// still on the stack means the graph is cyclic.
func (g *costGraph) topoOrder(affected map[int]bool) ([]int, error) {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[int]int, len(affected))
	order := make([]int, 0, len(affected))

	var visit func(recipeId int) error
	visit = func(recipeId int) error {
		color[recipeId] = gray
		for _, ingredientId := range g.byRecipe[recipeId] {
			ingredient := g.ingredients[ingredientId]
			if ingredient.Variant != models.IngredientVariantSubRecipe || ingredient.SubRecipeId == nil {
				continue
			}
			child := *ingredient.SubRecipeId
			if !affected[child] {
				continue
			}
			switch color[child] {
			case gray:
				return ErrorCycleDetected
			case white:
				if err := visit(child); err != nil {
					return err
				}
			}
		}
		color[recipeId] = black
		order = append(order, recipeId)
		return nil
	}

	roots := make([]int, 0, len(affected))
	for id := range affected {
		roots = append(roots, id)
	}
	sort.Ints(roots)
	for _, id := range roots {
		if color[id] == white {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// propagate is the planning core: apply the gross-price updates, walk every
// transitively dependent recipe bottom-up, and emit the resulting ledger
// writes and cost-change events. Pure over the snapshot.
func (g *costGraph) propagate(updates map[int]decimal.Decimal, dirtyRecipeIds []int) (*propagationPlan, error) {
	plan := &propagationPlan{}
	seeds := make(map[int]bool)
	for _, recipeId := range dirtyRecipeIds {
		if g.recipes[recipeId] == nil {
			return nil, utils.ErrorRecordNotFound
		}
		seeds[recipeId] = true
	}

	updatedIds := make([]int, 0, len(updates))
	for ingredientId := range updates {
		updatedIds = append(updatedIds, ingredientId)
	}
	sort.Ints(updatedIds)
	for _, ingredientId := range updatedIds {
		ingredient := g.ingredients[ingredientId]
		if ingredient == nil {
			return nil, utils.ErrorRecordNotFound
		}
		recipe := g.recipes[ingredient.RecipeId]
		if recipe == nil {
			return nil, utils.ErrorRecordNotFound
		}
		gross := updates[ingredientId]
		unitCost, _, _ := ingredientCostBreakdown(gross, ingredient.Quantity, ingredient.Loss, recipe.PortionCount())
		ingredient.GrossUnitPrice = gross
		ingredient.UnitCost = unitCost
		plan.Ingredients = append(plan.Ingredients, ingredientWrite{IngredientId: ingredientId, Gross: gross})
		seeds[ingredient.RecipeId] = true
	}

	affected := g.affectedRecipes(seeds)
	order, err := g.topoOrder(affected)
	if err != nil {
		return nil, err
	}

	for _, recipeId := range order {
		recipe := g.recipes[recipeId]
		total := decimal.Zero
		containsSub := false
		for _, ingredientId := range g.byRecipe[recipeId] {
			ingredient := g.ingredients[ingredientId]
			if ingredient.Variant == models.IngredientVariantSubRecipe && ingredient.SubRecipeId != nil {
				containsSub = true
				if affected[*ingredient.SubRecipeId] {
					child := g.recipes[*ingredient.SubRecipeId]
					gross := child.PurchaseCostPerPortion
					unitCost, _, _ := ingredientCostBreakdown(gross, ingredient.Quantity, ingredient.Loss, recipe.PortionCount())
					if !unitCost.Equal(ingredient.UnitCost) || !gross.Equal(ingredient.GrossUnitPrice) {
						ingredient.GrossUnitPrice = gross
						ingredient.UnitCost = unitCost
						plan.Ingredients = append(plan.Ingredients, ingredientWrite{IngredientId: ingredientId, Gross: gross})
					}
				}
			}
			total = total.Add(ingredient.UnitCost)
		}

		perPortion := utils.SafeDiv(total, recipe.PortionCount())
		margin := recipe.Margin
		if recipe.IsSaleableAndActive() {
			margin = models.ComputeMargin(recipe.SalePriceExclTax, perPortion)
		}
		if !perPortion.Equal(recipe.PurchaseCostPerPortion) {
			plan.Events = append(plan.Events, recipeCostChanged{
				RecipeId:      recipeId,
				OldPerPortion: recipe.PurchaseCostPerPortion,
				NewPerPortion: perPortion,
			})
		}
		recipe.PurchaseCostTotal = total
		recipe.PurchaseCostPerPortion = perPortion
		recipe.Margin = margin
		plan.Recipes = append(plan.Recipes, recipeWrite{
			RecipeId:          recipeId,
			Total:             total,
			PerPortion:        perPortion,
			Margin:            margin,
			ContainsSubRecipe: containsSub,
		})
	}
	return plan, nil
}

// applyPropagationPlan turns a plan into ledger writes. Ingredient writes are
// grouped under their owning recipe so each upsert sees the right portions.
func applyPropagationPlan(tx *gorm.DB, logger *logrus.Logger, graph *costGraph, plan *propagationPlan,
	date time.Time, trigger models.HistoryTrigger, invoiceId *int) error {

	for _, write := range plan.Ingredients {
		ingredient := graph.ingredients[write.IngredientId]
		recipe := graph.recipes[ingredient.RecipeId]
		if _, err := UpsertIngredientHistory(tx, logger, ingredient, recipe, write.Gross, date, trigger, invoiceId); err != nil {
			config.LogError(logger, "propagation.go", "applyPropagationPlan", "UpsertIngredientHistory", write, err)
			return err
		}
	}
	for _, write := range plan.Recipes {
		recipe := graph.recipes[write.RecipeId]
		if _, err := UpsertRecipeHistory(tx, logger, recipe, write.Total, write.PerPortion, write.Margin,
			write.ContainsSubRecipe, date, trigger, invoiceId); err != nil {
			config.LogError(logger, "propagation.go", "applyPropagationPlan", "UpsertRecipeHistory", write, err)
			return err
		}
	}
	return nil
}

// PropagateCosts records new gross prices for the given ingredients and
// recomputes every transitively dependent recipe bottom-up, writing history
// entries along the way. dirtyRecipeIds seeds recipes whose composition
// changed without a price update (manual edits, deletions).
func PropagateCosts(tx *gorm.DB, logger *logrus.Logger, establishmentId string,
	updates map[int]decimal.Decimal, dirtyRecipeIds []int,
	date time.Time, trigger models.HistoryTrigger, invoiceId *int) (*propagationPlan, error) {

	graph, err := loadCostGraph(tx, establishmentId)
	if err != nil {
		config.LogError(logger, "propagation.go", "PropagateCosts", "loadCostGraph", establishmentId, err)
		return nil, err
	}
	plan, err := graph.propagate(updates, dirtyRecipeIds)
	if err != nil {
		config.LogError(logger, "propagation.go", "PropagateCosts", "propagate", updates, err)
		return nil, err
	}
	if err := applyPropagationPlan(tx, logger, graph, plan, date, trigger, invoiceId); err != nil {
		return nil, err
	}
	return plan, nil
}
