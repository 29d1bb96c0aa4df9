/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suparena/dataprovider/errors"
	"github.com/suparena/dataprovider/filter"
	"github.com/suparena/dataprovider/models"
)

// Default page size of list requests that do not name one.
const defaultPerPage = 10

type updateRequest struct {
	Data         models.Record `json:"data"`
	PreviousData models.Record `json:"previousData"`
}

type deleteRequest struct {
	PreviousData models.Record `json:"previousData"`
}

type failedItem struct {
	ID    models.ID `json:"id"`
	Error string    `json:"error"`
}

// getList also serves getManyReference when target and id are present.
func (s *Server) getList(c *gin.Context) {
	resource := c.Param("resource")

	pagination, err := parsePagination(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	f, err := parseFilter(c.Query("filter"))
	if err != nil {
		s.fail(c, err)
		return
	}
	sort := models.Sort{Field: c.Query("sort"), Order: strings.ToUpper(c.DefaultQuery("order", models.SortAsc))}

	var res *models.ListResult
	if target := c.Query("target"); target != "" {
		res, err = s.handler.GetManyReference(c.Request.Context(), resource, &models.GetManyReferenceParams{
			Target:     target,
			ID:         models.ID(c.Query("id")),
			Pagination: pagination,
			Sort:       sort,
			Filter:     f,
		})
	} else {
		res, err = s.handler.GetList(c.Request.Context(), resource, &models.ListParams{
			Pagination: pagination,
			Sort:       sort,
			Filter:     f,
		})
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.Itoa(res.Total))
	c.JSON(http.StatusOK, res)
}

func (s *Server) getOne(c *gin.Context) {
	res, err := s.handler.GetOne(c.Request.Context(), c.Param("resource"), &models.GetOneParams{ID: models.ID(c.Param("id"))})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) getMany(c *gin.Context) {
	var params models.GetManyParams
	if !s.bind(c, &params) {
		return
	}
	res, err := s.handler.GetMany(c.Request.Context(), c.Param("resource"), &params)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res.Data, "failed": failedItems(res.Failed)})
}

func (s *Server) create(c *gin.Context) {
	var data models.Record
	if !s.bind(c, &data) {
		return
	}
	res, err := s.handler.Create(c.Request.Context(), c.Param("resource"), &models.CreateParams{Data: data})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) update(c *gin.Context) {
	var req updateRequest
	if !s.bind(c, &req) {
		return
	}
	res, err := s.handler.Update(c.Request.Context(), c.Param("resource"), &models.UpdateParams{
		ID:           models.ID(c.Param("id")),
		Data:         req.Data,
		PreviousData: req.PreviousData,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) updateMany(c *gin.Context) {
	var params models.UpdateManyParams
	if !s.bind(c, &params) {
		return
	}
	res, err := s.handler.UpdateMany(c.Request.Context(), c.Param("resource"), &params)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res.Data, "failed": failedItems(res.Failed)})
}

func (s *Server) delete(c *gin.Context) {
	var req deleteRequest
	if c.Request.ContentLength > 0 && !s.bind(c, &req) {
		return
	}
	res, err := s.handler.Delete(c.Request.Context(), c.Param("resource"), &models.DeleteParams{
		ID:           models.ID(c.Param("id")),
		PreviousData: req.PreviousData,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// deleteMany takes ids as repeated or comma-separated query parameters.
func (s *Server) deleteMany(c *gin.Context) {
	var ids []models.ID
	for _, v := range c.QueryArray("ids") {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, models.ID(id))
			}
		}
	}
	if len(ids) == 0 {
		s.fail(c, errors.NewValidationError("ids", "at least one id is required"))
		return
	}

	res, err := s.handler.DeleteMany(c.Request.Context(), c.Param("resource"), &models.DeleteManyParams{IDs: ids})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": res.Data, "failed": failedItems(res.Failed)})
}

func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		s.fail(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

func parsePagination(c *gin.Context) (models.Pagination, error) {
	p := models.Pagination{Page: 1, PerPage: defaultPerPage}
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.NewValidationError("page", "must be a positive integer")
		}
		p.Page = n
	}
	if v := c.Query("perPage"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.NewValidationError("perPage", "must be a positive integer")
		}
		p.PerPage = n
	}
	return p, p.Validate()
}

func parseFilter(raw string) (filter.Filter, error) {
	if raw == "" {
		return filter.Filter{}, nil
	}
	var f filter.Filter
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, errors.NewValidationError("filter", "must be a JSON object of query arguments")
	}
	return f, nil
}

func failedItems(failures []models.Failure) []failedItem {
	out := make([]failedItem, len(failures))
	for i, f := range failures {
		out[i] = failedItem{ID: f.ID, Error: f.Err.Error()}
	}
	return out
}
