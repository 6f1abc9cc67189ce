package handler

import (
	"context"
	"errors"
	"net/http"

	"taskboard/internal/middleware"
	"taskboard/internal/model"
	"taskboard/internal/ordering"
	"taskboard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// TaskService is the part of service.TaskService the HTTP layer uses.
type TaskService interface {
	CreateTask(ctx context.Context, userID, boardID uuid.UUID, in service.CreateTaskInput) (*model.Task, error)
	GetTask(ctx context.Context, userID, taskID uuid.UUID) (*model.Task, error)
	ListBoardTasks(ctx context.Context, userID, boardID uuid.UUID) ([]model.Task, error)
	UpdateTask(ctx context.Context, userID, taskID uuid.UUID, patch service.TaskPatch) (*model.Task, error)
	MoveTask(ctx context.Context, userID, taskID uuid.UUID, status model.TaskStatus, position int) (*model.Task, error)
	ReorderBatch(ctx context.Context, userID, boardID uuid.UUID, updates []ordering.Update) error
	RemoveTask(ctx context.Context, userID, taskID uuid.UUID) error
}

type TaskHandler struct {
	tasks TaskService
}

func NewTaskHandler(tasks TaskService) *TaskHandler {
	return &TaskHandler{tasks: tasks}
}

// CreateTaskRequest is the body of POST /boards/{id}/tasks.
type CreateTaskRequest struct {
	Title       string `json:"title" binding:"required" example:"Write release notes"`
	Description string `json:"description"`
	Status      string `json:"status" example:"todo"`
	Priority    string `json:"priority" example:"medium"`
	Position    *int   `json:"position"`
}

// UpdateTaskRequest is the body of PATCH /tasks/{id}. Omitted fields are left unchanged.
type UpdateTaskRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	Position    *int    `json:"position"`
}

type MoveTaskRequest struct {
	Status   string `json:"status" binding:"required" example:"in-progress"`
	Position *int   `json:"position" binding:"required" example:"0"`
}

type ReorderItem struct {
	ID       string `json:"id" binding:"required"`
	Status   string `json:"status" binding:"required"`
	Position *int   `json:"position" binding:"required"`
}

// ReorderRequest carries the final slot of every task the client moved.
type ReorderRequest struct {
	Tasks []ReorderItem `json:"tasks" binding:"required,dive"`
}

type ColumnResponse struct {
	Status model.TaskStatus `json:"status"`
	Tasks  []model.Task     `json:"tasks"`
}

type BoardTasksResponse struct {
	BoardID string           `json:"board_id"`
	Columns []ColumnResponse `json:"columns"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// boardColumns is the left to right column order of a board.
var boardColumns = []model.TaskStatus{model.StatusTodo, model.StatusInProgress, model.StatusCompleted}

// Create godoc
// @Summary      Create a task
// @Description  Adds a task to a board column. Without a position it is appended.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id    path      string             true  "Board ID"
// @Param        task  body      CreateTaskRequest  true  "Task"
// @Success      201   {object}  model.Task
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /boards/{id}/tasks [post]
func (h *TaskHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	boardID, ok := pathID(c, "Invalid board ID format")
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request"})
		return
	}

	task, err := h.tasks.CreateTask(c.Request.Context(), userID, boardID, service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      model.TaskStatus(req.Status),
		Priority:    model.TaskPriority(req.Priority),
		Position:    req.Position,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, task)
}

// ListByBoard godoc
// @Summary      List board tasks
// @Description  Returns the tasks of a board grouped by column and ordered by position.
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Board ID"
// @Success      200  {object}  BoardTasksResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /boards/{id}/tasks [get]
func (h *TaskHandler) ListByBoard(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	boardID, ok := pathID(c, "Invalid board ID format")
	if !ok {
		return
	}

	tasks, err := h.tasks.ListBoardTasks(c.Request.Context(), userID, boardID)
	if err != nil {
		writeError(c, err)
		return
	}

	byStatus := make(map[model.TaskStatus][]model.Task, len(boardColumns))
	for _, task := range tasks {
		byStatus[task.Status] = append(byStatus[task.Status], task)
	}
	resp := BoardTasksResponse{BoardID: boardID.String()}
	for _, status := range boardColumns {
		column := ColumnResponse{Status: status, Tasks: byStatus[status]}
		if column.Tasks == nil {
			column.Tasks = []model.Task{}
		}
		resp.Columns = append(resp.Columns, column)
	}

	c.JSON(http.StatusOK, resp)
}

// Reorder godoc
// @Summary      Reorder tasks
// @Description  Writes the final slots of several tasks at once. Every column touched must stay gap free.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id     path      string          true  "Board ID"
// @Param        batch  body      ReorderRequest  true  "Final task slots"
// @Success      200    {object}  MessageResponse
// @Failure      400    {object}  ErrorResponse
// @Failure      403    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /boards/{id}/tasks/reorder [put]
func (h *TaskHandler) Reorder(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	boardID, ok := pathID(c, "Invalid board ID format")
	if !ok {
		return
	}

	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request"})
		return
	}

	updates := make([]ordering.Update, 0, len(req.Tasks))
	for _, item := range req.Tasks {
		taskID, err := uuid.Parse(item.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid task ID format"})
			return
		}
		updates = append(updates, ordering.Update{
			TaskID:   taskID,
			Status:   model.TaskStatus(item.Status),
			Position: *item.Position,
		})
	}

	if err := h.tasks.ReorderBatch(c.Request.Context(), userID, boardID, updates); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Tasks reordered successfully"})
}

// GetByID godoc
// @Summary      Get a task
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  model.Task
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id} [get]
func (h *TaskHandler) GetByID(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "Invalid task ID format")
	if !ok {
		return
	}

	task, err := h.tasks.GetTask(c.Request.Context(), userID, taskID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Update godoc
// @Summary      Update a task
// @Description  Changes task fields. A new status without a position moves the task to the end of that column.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id     path      string             true  "Task ID"
// @Param        patch  body      UpdateTaskRequest  true  "Fields to change"
// @Success      200    {object}  model.Task
// @Failure      400    {object}  ErrorResponse
// @Failure      403    {object}  ErrorResponse
// @Failure      404    {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id} [patch]
func (h *TaskHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "Invalid task ID format")
	if !ok {
		return
	}

	var req UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request"})
		return
	}

	patch := service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Position:    req.Position,
	}
	if req.Status != nil {
		status := model.TaskStatus(*req.Status)
		patch.Status = &status
	}
	if req.Priority != nil {
		priority := model.TaskPriority(*req.Priority)
		patch.Priority = &priority
	}

	task, err := h.tasks.UpdateTask(c.Request.Context(), userID, taskID, patch)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Move godoc
// @Summary      Move a task
// @Description  Places a task at a position in a status column and reflows both columns.
// @Tags         Tasks
// @Accept       json
// @Produce      json
// @Param        id    path      string           true  "Task ID"
// @Param        move  body      MoveTaskRequest  true  "Target slot"
// @Success      200   {object}  model.Task
// @Failure      400   {object}  ErrorResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id}/move [post]
func (h *TaskHandler) Move(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "Invalid task ID format")
	if !ok {
		return
	}

	var req MoveTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request"})
		return
	}

	task, err := h.tasks.MoveTask(c.Request.Context(), userID, taskID, model.TaskStatus(req.Status), *req.Position)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// Delete godoc
// @Summary      Delete a task
// @Description  Removes a task and closes the gap in its column.
// @Tags         Tasks
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  MessageResponse
// @Failure      403  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Security     BearerAuth
// @Router       /tasks/{id} [delete]
func (h *TaskHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	taskID, ok := pathID(c, "Invalid task ID format")
	if !ok {
		return
	}

	if err := h.tasks.RemoveTask(c.Request.Context(), userID, taskID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Task deleted successfully"})
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Not authenticated"})
		return uuid.Nil, false
	}
	return userID, true
}

func pathID(c *gin.Context, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
		return uuid.Nil, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrAccessDenied):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "You don't have access to this board"})
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	default:
		log.WithFields(log.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"error":  err,
		}).Error("request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
	}
}
