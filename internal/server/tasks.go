package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/models"
	"taskmanager/internal/validation"
)

var (
	idRules = []validation.Rule{
		{Field: "id", In: validation.InPath, Type: validation.ObjectID, Tag: "required,mongodb"},
	}

	createRules = []validation.Rule{
		{Field: "title", In: validation.InBody, Type: validation.String, Tag: "required,notblank", Trim: true, Message: "title is required"},
		{Field: "description", In: validation.InBody, Type: validation.String, Trim: true},
		{Field: "completed", In: validation.InBody, Type: validation.Bool, Message: "completed must be boolean"},
		{Field: "dueDate", In: validation.InBody, Type: validation.DateTime},
	}

	updateRules = []validation.Rule{
		{Field: "id", In: validation.InPath, Type: validation.ObjectID, Tag: "required,mongodb"},
		{Field: "title", In: validation.InBody, Type: validation.String, Tag: "notblank", Trim: true},
		{Field: "description", In: validation.InBody, Type: validation.String, Trim: true},
		{Field: "completed", In: validation.InBody, Type: validation.Bool, Message: "completed must be boolean"},
		{Field: "dueDate", In: validation.InBody, Type: validation.DateTime},
	}
)

// handleListTasks returns every task, newest first.
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := s.store.ListTasks(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, tasks)
}

// handleCreateTask inserts a new task.
func (s *Server) handleCreateTask(c *gin.Context) {
	values := validatedValues(c)

	var in models.NewTask
	in.Title, _ = values.String("title")
	in.Description, _ = values.String("description")
	in.Completed, _ = values.Bool("completed")
	if due, ok := values.Time("dueDate"); ok {
		in.DueDate = &due
	}

	task, err := s.store.CreateTask(c.Request.Context(), in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.logger.Debug().Str("id", task.ID).Msg("created task")
	respondSuccess(c, http.StatusCreated, task)
}

// handleGetTask fetches a single task.
func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.store.GetTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleUpdateTask changes only the supplied fields.
func (s *Server) handleUpdateTask(c *gin.Context) {
	task, err := s.store.UpdateTask(c.Request.Context(), c.Param("id"), patchFrom(validatedValues(c)))
	if err != nil {
		abortWithError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, task)
}

// handleDeleteTask removes a task completely.
func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.store.DeleteTask(c.Request.Context(), c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	s.logger.Debug().Str("id", c.Param("id")).Msg("deleted task")
	respondSuccess(c, http.StatusNoContent, nil)
}

func patchFrom(values validation.Values) models.TaskPatch {
	var patch models.TaskPatch
	if v, ok := values.String("title"); ok {
		patch.Title = &v
	}
	if v, ok := values.String("description"); ok {
		patch.Description = &v
	}
	if v, ok := values.Bool("completed"); ok {
		patch.Completed = &v
	}
	if v, ok := values.Time("dueDate"); ok {
		patch.DueDate = &v
	}
	return patch
}
