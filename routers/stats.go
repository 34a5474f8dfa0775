package routers

import (
	"time"

	"github.com/gin-gonic/gin"
)

/**
 * @apiDefine stats Statistics
 */

/**
 * @api {get} /api/v1/stats Run state and host usage
 * @apiGroup stats
 * @apiName Stats
 * @apiSuccess (200) {String} run run id
 * @apiSuccess (200) {String} state validating/running/stopping/stopped
 * @apiSuccess (200) {Number} elapsedSeconds time since the first publisher started
 * @apiSuccess (200) {Number} streams configured stream count
 * @apiSuccess (200) {Number} healthy streams currently healthy
 * @apiSuccess (200) {Number} cpuPercent host CPU usage from the last sample
 * @apiSuccess (200) {Number} memoryPercent host memory usage from the last sample
 * @apiSuccess (200) {Number} memoryUsedBytes
 * @apiSuccess (200) {Number} memoryTotalBytes
 */
func (h *APIHandler) Stats(c *gin.Context) {
	snaps := h.Svc.Snapshots()
	healthy := 0
	for _, s := range snaps {
		if s.Healthy {
			healthy++
		}
	}
	elapsed := 0.0
	if at := h.Svc.StartedAt(); !at.IsZero() {
		elapsed = time.Since(at).Seconds()
	}
	usage := h.Svc.LastUsage()
	c.IndentedJSON(200, gin.H{
		"run":              h.Svc.RunID(),
		"state":            h.Svc.State().String(),
		"elapsedSeconds":   elapsed,
		"streams":          len(snaps),
		"healthy":          healthy,
		"cpuPercent":       usage.CPUPercent,
		"memoryPercent":    usage.MemoryPercent,
		"memoryUsedBytes":  usage.MemoryUsed,
		"memoryTotalBytes": usage.MemoryTotal,
	})
}

/**
 * @api {get} /api/v1/report Final report
 * @apiGroup stats
 * @apiName FinalReport
 * @apiSuccess (200) {String} id run id
 * @apiSuccess (200) {String} stopReason why the run ended
 * @apiSuccess (200) {Number} testDurationSeconds
 * @apiSuccess (200) {Number} totalStreams
 * @apiSuccess (200) {Array} streams per-stream outcomes
 */
func (h *APIHandler) FinalReport(c *gin.Context) {
	r := h.Svc.Report()
	if r == nil {
		c.AbortWithStatusJSON(404, gin.H{"error": "the run has not finished"})
		return
	}
	c.IndentedJSON(200, r)
}
