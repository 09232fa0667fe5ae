package main

import (
	"fmt"
	"net/http"
	"time"

	"bitbucket.org/pulsemark/social_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// auditExportHandler streams the workspace's approval audit trail as an xlsx
// workbook. Optional from/to query params (RFC3339) bound the export.
func auditExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter models.AuditLogFilter
		if v := c.Query("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
				return
			}
			filter.From = &t
		}
		if v := c.Query("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
				return
			}
			filter.To = &t
		}

		logs, err := models.ListApprovalAuditLogs(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}

		f := excelize.NewFile()
		sheet := "Sheet1"

		f.SetCellValue(sheet, "A1", "QueueItemId")
		f.SetCellValue(sheet, "B1", "Action")
		f.SetCellValue(sheet, "C1", "Actor")
		f.SetCellValue(sheet, "D1", "System")
		f.SetCellValue(sheet, "E1", "Notes")
		f.SetCellValue(sheet, "F1", "Timestamp")

		for i, log := range logs {
			row := fmt.Sprint(i + 2)
			f.SetCellValue(sheet, "A"+row, log.QueueItemId)
			f.SetCellValue(sheet, "B"+row, string(log.Action))
			f.SetCellValue(sheet, "C"+row, log.ActorName)
			f.SetCellValue(sheet, "D"+row, log.IsSystemAction != nil && *log.IsSystemAction)
			f.SetCellValue(sheet, "E"+row, log.Notes)
			f.SetCellValue(sheet, "F"+row, log.CreatedAt.Format(time.RFC3339))
		}

		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename=approval-audit.xlsx")
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to write workbook"})
		}
	}
}
