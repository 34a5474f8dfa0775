package routers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ilhamfadhil14/load-test-rtsp-stream/models"
)

/**
 * @apiDefine runs History
 */

/**
 * @api {get} /api/v1/runs Past runs
 * @apiGroup runs
 * @apiName Runs
 * @apiParam {String} [id] run id, returns that run's stream results instead of the run list
 * @apiParam {Number} [limit=20] page size for the run list
 * @apiSuccess (200) {Number} total
 * @apiSuccess (200) {Array} rows runs, newest first
 */
func (h *APIHandler) Runs(c *gin.Context) {
	if !h.HistoryEnabled {
		c.AbortWithStatusJSON(404, gin.H{"error": "history is disabled"})
		return
	}
	if id := c.Query("id"); id != "" {
		rows, err := models.RunResults(id)
		if err != nil {
			c.AbortWithStatusJSON(500, gin.H{"error": err.Error()})
			return
		}
		c.IndentedJSON(200, gin.H{"total": len(rows), "rows": rows})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	rows, err := models.ListRuns(limit)
	if err != nil {
		c.AbortWithStatusJSON(500, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(200, gin.H{"total": len(rows), "rows": rows})
}
