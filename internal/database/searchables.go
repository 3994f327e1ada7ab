// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

package database

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/vitalis/internal/metrics"
	"github.com/tomtom215/vitalis/internal/recommend"
)

// UpsertFood inserts or replaces a food entry.
func (db *DB) UpsertFood(ctx context.Context, food recommend.FoodItem) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("upsert", "food_items", time.Since(start), err) }()

	if strings.TrimSpace(food.ID) == "" || strings.TrimSpace(food.Name) == "" {
		return invalidRecord("food id and name are required")
	}
	for _, v := range []float64{food.Calories, food.ProteinGrams, food.CarbsGrams, food.FatGrams, food.ServingSize} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return invalidRecord("food %s has a negative or non-finite nutrient value", food.ID)
		}
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO food_items (id, name, brand, calories, protein_g, carbs_g, fat_g, serving_size, serving_unit, is_user_created, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			calories = EXCLUDED.calories,
			protein_g = EXCLUDED.protein_g,
			carbs_g = EXCLUDED.carbs_g,
			fat_g = EXCLUDED.fat_g,
			serving_size = EXCLUDED.serving_size,
			serving_unit = EXCLUDED.serving_unit,
			is_user_created = EXCLUDED.is_user_created,
			updated_at = CURRENT_TIMESTAMP`,
		food.ID, food.Name, food.Brand, food.Calories, food.ProteinGrams, food.CarbsGrams,
		food.FatGrams, food.ServingSize, food.ServingUnit, food.IsUserCreated)
	if err != nil {
		return fmt.Errorf("upsert food: %w", err)
	}
	return nil
}

// UpsertExercise inserts or replaces an exercise entry.
func (db *DB) UpsertExercise(ctx context.Context, ex recommend.Exercise) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("upsert", "exercises", time.Since(start), err) }()

	if strings.TrimSpace(ex.ID) == "" || strings.TrimSpace(ex.Name) == "" {
		return invalidRecord("exercise id and name are required")
	}
	if math.IsNaN(ex.MET) || math.IsInf(ex.MET, 0) || ex.MET < 0 {
		return invalidRecord("exercise %s has an invalid MET value", ex.ID)
	}
	muscles, err := json.Marshal(nonNilTags(ex.MuscleGroups))
	if err != nil {
		return fmt.Errorf("marshal muscle groups: %w", err)
	}
	equipment, err := json.Marshal(nonNilTags(ex.Equipment))
	if err != nil {
		return fmt.Errorf("marshal equipment: %w", err)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO exercises (id, name, kind, muscle_groups, equipment, met, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			muscle_groups = EXCLUDED.muscle_groups,
			equipment = EXCLUDED.equipment,
			met = EXCLUDED.met,
			updated_at = CURRENT_TIMESTAMP`,
		ex.ID, ex.Name, ex.Kind, string(muscles), string(equipment), ex.MET)
	if err != nil {
		return fmt.Errorf("upsert exercise: %w", err)
	}
	return nil
}

func queryFoods(ctx context.Context, q querier) (foods []recommend.FoodItem, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "food_items", time.Since(start), err) }()

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, brand, calories, protein_g, carbs_g, fat_g, serving_size, serving_unit, is_user_created
		FROM food_items
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query foods: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var f recommend.FoodItem
		if err := rows.Scan(&f.ID, &f.Name, &f.Brand, &f.Calories, &f.ProteinGrams, &f.CarbsGrams,
			&f.FatGrams, &f.ServingSize, &f.ServingUnit, &f.IsUserCreated); err != nil {
			return nil, fmt.Errorf("scan food: %w", err)
		}
		foods = append(foods, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foods: %w", err)
	}
	return foods, nil
}

func queryExercises(ctx context.Context, q querier) (exercises []recommend.Exercise, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "exercises", time.Since(start), err) }()

	rows, err := q.QueryContext(ctx, `
		SELECT id, name, kind, muscle_groups, equipment, met
		FROM exercises
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var (
			ex        recommend.Exercise
			muscles   string
			equipment string
		)
		if err := rows.Scan(&ex.ID, &ex.Name, &ex.Kind, &muscles, &equipment, &ex.MET); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		if err := json.Unmarshal([]byte(muscles), &ex.MuscleGroups); err != nil {
			return nil, fmt.Errorf("exercise %s muscle groups: %w", ex.ID, err)
		}
		if err := json.Unmarshal([]byte(equipment), &ex.Equipment); err != nil {
			return nil, fmt.Errorf("exercise %s equipment: %w", ex.ID, err)
		}
		exercises = append(exercises, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercises: %w", err)
	}
	return exercises, nil
}
