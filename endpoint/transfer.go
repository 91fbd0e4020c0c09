package endpoint

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/A-tamer/hospital-management-system/fileio"
	"github.com/A-tamer/hospital-management-system/middleware"
	"github.com/A-tamer/hospital-management-system/reconcile"
	"github.com/A-tamer/hospital-management-system/util"
	"github.com/gin-gonic/gin"
)

// maxImportSize bounds an uploaded import file.
const maxImportSize = 20 << 20

// ImportPatients godoc
// @Summary      Import patients from a file
// @Description  Upload a .json, .csv or .xlsx file. Rows are imported one by one; failed rows are reported without aborting the batch.
// @Tags         Patient
// @Accept       multipart/form-data
// @Produce      json
// @Param        file formData file true "Patient file"
// @Success      200 {object} util.APIResponse{data=reconcile.ImportResult} "Import finished"
// @Failure      400 {object} util.APIResponse "Unreadable file"
// @Failure      429 {object} util.APIResponse "Too many requests"
// @Router       /patient/import [post]
func ImportPatients(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Missing upload file", Err: err})
		return
	}
	if header.Size > maxImportSize {
		util.CallUserError(c, util.APIErrorParams{
			Msg: "Upload too large",
			Err: fmt.Errorf("file exceeds %d bytes", maxImportSize),
		})
		return
	}
	format, err := fileio.DetectFormat(header.Filename)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Unsupported file type", Err: err})
		return
	}

	f, err := header.Open()
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to open upload", Err: err})
		return
	}
	defer f.Close()

	rows, shape, err := fileio.Read(f, format)
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Failed to read import file", Err: err})
		return
	}

	store := middleware.GetStore(c)
	if store == nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Database connection not available",
			Err: errors.New("store is nil"),
		})
		return
	}

	result := reconcile.NewImporter(store, middleware.GetImportOptions(c)...).ImportBatch(c.Request.Context(), rows, shape)

	audit(c, util.EventImportCompleted, fmt.Sprintf("imported %d of %d rows from %s", result.SuccessCount, len(rows), header.Filename), map[string]interface{}{
		"file":     header.Filename,
		"shape":    shape.String(),
		"rows":     len(rows),
		"imported": result.SuccessCount,
		"failed":   len(result.Errors),
	})
	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "Import finished",
		Data: result,
	})
}

// ExportPatients godoc
// @Summary      Export all patients
// @Description  Download every patient as json (default), csv or xlsx. Cost columns require financial access.
// @Tags         Patient
// @Produce      octet-stream
// @Param        format query string false "json|csv|xlsx"
// @Success      200 {file} file "Export file"
// @Router       /patient/export [get]
func ExportPatients(c *gin.Context) {
	format, err := fileio.DetectFormat("export." + c.DefaultQuery("format", string(fileio.FormatJSON)))
	if err != nil {
		util.CallUserError(c, util.APIErrorParams{Msg: "Unsupported export format", Err: err})
		return
	}

	store := middleware.GetStore(c)
	if store == nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Database connection not available",
			Err: errors.New("store is nil"),
		})
		return
	}

	patients, err := store.ListAll(c.Request.Context())
	if err != nil {
		respondError(c, "Failed to load patients", err)
		return
	}

	now := time.Now()
	financial := viewsFinancial(c)
	var buf bytes.Buffer
	if err := fileio.Write(&buf, format, patients, now, financial); err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to write export", Err: err})
		return
	}

	filename := fmt.Sprintf("patients-%s.%s", now.Format("20060102-150405"), format)
	audit(c, util.EventExport, fmt.Sprintf("exported %d patients as %s", len(patients), format), map[string]interface{}{
		"format":    string(format),
		"count":     len(patients),
		"financial": financial,
	})
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
}

// GetDashboard godoc
// @Summary      Dashboard statistics
// @Tags         Dashboard
// @Produce      json
// @Success      200 {object} util.APIResponse{data=reconcile.Dashboard} "Dashboard"
// @Router       /dashboard [get]
func GetDashboard(c *gin.Context) {
	svc, ok := serviceFrom(c)
	if !ok {
		return
	}

	dashboard, err := svc.Dashboard(c.Request.Context(), viewsFinancial(c))
	if err != nil {
		respondError(c, "Failed to build dashboard", err)
		return
	}
	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Dashboard", Data: dashboard})
}
