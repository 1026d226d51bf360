package handler

import (
	"bytes"
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"sheetlens/internal/chart"
	"sheetlens/internal/http/middleware"
	"sheetlens/internal/model"
	"sheetlens/internal/service"
	"sheetlens/internal/sheet"
)

const (
	minChartSide = 100
	maxChartSide = 4000
)

// downloadResponse is the JSON form of a download: the rows plus the name the
// client should save them under.
type downloadResponse struct {
	FileName string        `json:"fileName"`
	Columns  []string      `json:"columns"`
	Data     model.Dataset `json:"data" swaggertype:"array,object"`
}

func ownerFrom(c *fiber.Ctx) (string, bool) {
	id, ok := middleware.IdentityFrom(c)
	return id.UserID, ok
}

func unauthorized(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "authorization required")
}

func invalidID(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
}

// SaveAnalysis stores a new analysis for the caller.
//
// @Summary  Save an analysis
// @Tags     analysis
// @Accept   json
// @Produce  json
// @Param    body  body      service.SaveInput  true  "Analysis"
// @Success  201   {object}  model.Analysis
// @Failure  400   {object}  errorPayload
// @Failure  401   {object}  errorPayload
// @Security BearerAuth
// @Router   /api/analysis [post]
func SaveAnalysis(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, ok := ownerFrom(c)
		if !ok {
			return unauthorized(c)
		}

		var in service.SaveInput
		if err := c.BodyParser(&in); err != nil {
			if errors.Is(err, model.ErrNotScalar) {
				return writeServiceError(c, err)
			}
			return writeValidationError(c, map[string]string{"body": "must be a JSON object"})
		}

		a, err := svc.Save(c.UserContext(), owner, in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	}
}

// RecentAnalyses lists the caller's analyses, most recent first, without row data.
// The total count is returned in the X-Total-Count header.
//
// @Summary  List recent analyses
// @Tags     analysis
// @Produce  json
// @Param    limit   query     int  false  "Page size"
// @Param    offset  query     int  false  "Page offset"
// @Success  200     {array}   model.AnalysisSummary
// @Failure  400     {object}  errorPayload
// @Failure  401     {object}  errorPayload
// @Security BearerAuth
// @Router   /api/analysis/recent [get]
func RecentAnalyses(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, ok := ownerFrom(c)
		if !ok {
			return unauthorized(c)
		}

		limit, err := strconv.Atoi(c.Query("limit", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.Recent(c.UserContext(), owner, limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set("X-Total-Count", strconv.Itoa(res.Total))
		return c.JSON(res.Items)
	}
}

// GetAnalysis returns one of the caller's analyses.
//
// @Summary  View an analysis
// @Tags     analysis
// @Produce  json
// @Param    id   path      string  true  "Analysis ID"
// @Success  200  {object}  model.Analysis
// @Failure  400  {object}  errorPayload
// @Failure  404  {object}  errorPayload
// @Security BearerAuth
// @Router   /api/analysis/{id} [get]
func GetAnalysis(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, ok := ownerFrom(c)
		if !ok {
			return unauthorized(c)
		}
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return invalidID(c)
		}

		a, err := svc.Get(c.UserContext(), id, owner)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(a)
	}
}

// DownloadAnalysis returns an analysis' rows as JSON, or as an xlsx
// attachment when format=xlsx.
//
// @Summary  Download analysis rows
// @Tags     analysis
// @Produce  json
// @Produce  application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param    id      path      string  true   "Analysis ID"
// @Param    format  query     string  false  "json (default) or xlsx"
// @Success  200     {object}  downloadResponse
// @Failure  400     {object}  errorPayload
// @Failure  404     {object}  errorPayload
// @Security BearerAuth
// @Router   /api/analysis/{id}/download [get]
func DownloadAnalysis(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, ok := ownerFrom(c)
		if !ok {
			return unauthorized(c)
		}
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return invalidID(c)
		}

		switch c.Query("format", "json") {
		case "json":
			a, err := svc.Get(c.UserContext(), id, owner)
			if err != nil {
				return writeServiceError(c, err)
			}
			return c.JSON(downloadResponse{FileName: a.FileName, Columns: a.Data.Columns, Data: a.Data})
		case "xlsx":
			wb, err := svc.Workbook(c.UserContext(), id, owner)
			if err != nil {
				return writeServiceError(c, err)
			}
			c.Attachment(wb.FileName)
			c.Set(fiber.HeaderContentType, sheet.ContentType)
			return c.Send(wb.Content)
		default:
			return writeValidationError(c, map[string]string{"format": "must be one of: json, xlsx"})
		}
	}
}

// AnalysisChart renders an analysis as a PNG chart.
//
// @Summary  Render chart
// @Tags     analysis
// @Produce  png
// @Param    id      path   string  true   "Analysis ID"
// @Param    width   query  int     false  "Image width in pixels"
// @Param    height  query  int     false  "Image height in pixels"
// @Success  200
// @Failure  404  {object}  errorPayload
// @Failure  422  {object}  errorPayload
// @Security BearerAuth
// @Router   /api/analysis/{id}/chart.png [get]
func AnalysisChart(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, ok := ownerFrom(c)
		if !ok {
			return unauthorized(c)
		}
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return invalidID(c)
		}

		opts := chart.Options{}
		fields := map[string]string{}
		for _, dim := range []struct {
			name string
			dst  *int
		}{{"width", &opts.Width}, {"height", &opts.Height}} {
			raw := c.Query(dim.name)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < minChartSide || n > maxChartSide {
				fields[dim.name] = "must be an integer between " + strconv.Itoa(minChartSide) + " and " + strconv.Itoa(maxChartSide)
				continue
			}
			*dim.dst = n
		}
		if len(fields) > 0 {
			return writeValidationError(c, fields)
		}

		var buf bytes.Buffer
		if err := svc.Chart(c.UserContext(), id, owner, opts, &buf); err != nil {
			return writeServiceError(c, err)
		}
		c.Type("png")
		return c.Send(buf.Bytes())
	}
}

// ExportAnalysis archives the analysis as xlsx in object storage and returns
// a time-limited download link.
//
// @Summary  Export to object storage
// @Tags     analysis
// @Produce  json
// @Param    id   path      string  true  "Analysis ID"
// @Success  200  {object}  service.ExportResult
// @Failure  404  {object}  errorPayload
// @Failure  500  {object}  errorPayload
// @Security BearerAuth
// @Router   /api/analysis/{id}/export [post]
func ExportAnalysis(svc service.AnalysisService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner, ok := ownerFrom(c)
		if !ok {
			return unauthorized(c)
		}
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return invalidID(c)
		}

		res, err := svc.Export(c.UserContext(), id, owner)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}
