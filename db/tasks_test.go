// ABOUTME: Tests for task operations and department aggregates
// ABOUTME: Covers defaults, status updates, overdue counting, and department discovery
package db

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opspulse/opspulse/models"
)

func TestCreateTaskDefaults(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	task := &models.Task{Title: "Write report", Department: "operations"}
	if err := CreateTask(db, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if task.ID == uuid.Nil {
		t.Error("Task ID was not set")
	}
	if task.Status != models.TaskTodo {
		t.Errorf("Expected default status todo, got %s", task.Status)
	}

	stored, err := GetTask(db, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if stored == nil {
		t.Fatal("Task not found after create")
	}
	if stored.Title != "Write report" {
		t.Errorf("Unexpected title: %s", stored.Title)
	}
}

func TestUpdateTaskStatus(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	task := &models.Task{Title: "Ship release", Department: "engineering"}
	if err := CreateTask(db, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	if err := UpdateTaskStatus(db, task.ID, models.TaskDone); err != nil {
		t.Fatalf("UpdateTaskStatus failed: %v", err)
	}

	stored, err := GetTask(db, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if stored.Status != models.TaskDone {
		t.Errorf("Expected status done, got %s", stored.Status)
	}
}

func TestFindTasksFilters(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seed := []models.Task{
		{Title: "A", Department: "sales", Status: models.TaskDone},
		{Title: "B", Department: "sales", Status: models.TaskTodo},
		{Title: "C", Department: "engineering", Status: models.TaskTodo},
	}
	for i := range seed {
		if err := CreateTask(db, &seed[i]); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	sales, err := FindTasks(db, "sales", "", 0)
	if err != nil {
		t.Fatalf("FindTasks failed: %v", err)
	}
	if len(sales) != 2 {
		t.Errorf("Expected 2 sales tasks, got %d", len(sales))
	}

	todo, err := FindTasks(db, "", models.TaskTodo, 0)
	if err != nil {
		t.Fatalf("FindTasks failed: %v", err)
	}
	if len(todo) != 2 {
		t.Errorf("Expected 2 todo tasks, got %d", len(todo))
	}

	all, err := FindTasks(db, "", "", 0)
	if err != nil {
		t.Fatalf("FindTasks failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 tasks, got %d", len(all))
	}
}

func TestCountTasks(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	now := time.Now()
	past := now.Add(-48 * time.Hour)
	future := now.Add(48 * time.Hour)

	seed := []models.Task{
		{Title: "Done", Department: "sales", Status: models.TaskDone, DueDate: &past},
		{Title: "Late", Department: "sales", Status: models.TaskInProgress, DueDate: &past},
		{Title: "Fine", Department: "sales", Status: models.TaskTodo, DueDate: &future},
		{Title: "Stuck", Department: "sales", Status: models.TaskBlocked},
		{Title: "Other dept", Department: "marketing", Status: models.TaskTodo},
	}
	for i := range seed {
		if err := CreateTask(db, &seed[i]); err != nil {
			t.Fatalf("CreateTask failed: %v", err)
		}
	}

	counts, err := CountTasks(db, "sales", now)
	if err != nil {
		t.Fatalf("CountTasks failed: %v", err)
	}
	if counts.Total != 4 {
		t.Errorf("Expected 4 sales tasks, got %d", counts.Total)
	}
	if counts.Done != 1 {
		t.Errorf("Expected 1 done, got %d", counts.Done)
	}
	if counts.Active != 2 {
		t.Errorf("Expected 2 active, got %d", counts.Active)
	}
	if counts.Blocked != 1 {
		t.Errorf("Expected 1 blocked, got %d", counts.Blocked)
	}
	if counts.Overdue != 1 {
		t.Errorf("Expected 1 overdue (done tasks never count), got %d", counts.Overdue)
	}

	companyWide, err := CountTasks(db, "", now)
	if err != nil {
		t.Fatalf("CountTasks failed: %v", err)
	}
	if companyWide.Total != 5 {
		t.Errorf("Expected 5 tasks company-wide, got %d", companyWide.Total)
	}
}

func TestLastActivity(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	last, err := LastActivity(db, "sales")
	if err != nil {
		t.Fatalf("LastActivity failed: %v", err)
	}
	if last != nil {
		t.Error("Expected nil last activity for empty department")
	}

	task := &models.Task{Title: "First", Department: "sales"}
	if err := CreateTask(db, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}

	last, err = LastActivity(db, "sales")
	if err != nil {
		t.Fatalf("LastActivity failed: %v", err)
	}
	if last == nil {
		t.Fatal("Expected a last activity time")
	}
}

func TestDepartments(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	task := &models.Task{Title: "T", Department: "sales"}
	if err := CreateTask(db, task); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	milestone := &models.Milestone{Name: "M", Department: "engineering", TargetDate: time.Now()}
	if err := CreateMilestone(db, milestone); err != nil {
		t.Fatalf("CreateMilestone failed: %v", err)
	}
	item := &models.ActionItem{Description: "A", Department: "sales"}
	if err := CreateActionItem(db, item); err != nil {
		t.Fatalf("CreateActionItem failed: %v", err)
	}

	departments, err := Departments(db)
	if err != nil {
		t.Fatalf("Departments failed: %v", err)
	}
	if len(departments) != 2 {
		t.Fatalf("Expected 2 distinct departments, got %v", departments)
	}
	if departments[0] != "engineering" || departments[1] != "sales" {
		t.Errorf("Unexpected department order: %v", departments)
	}
}
