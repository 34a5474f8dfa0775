package routers

import (
	"github.com/gin-gonic/gin"
)

/**
 * @apiDefine stream Streams
 */

/**
 * @api {get} /api/v1/streams List publishers
 * @apiGroup stream
 * @apiName Streams
 * @apiSuccess (200) {Number} total stream count
 * @apiSuccess (200) {Array} rows stream list
 * @apiSuccess (200) {String} rows.name
 * @apiSuccess (200) {String} rows.endpoint publish URL
 * @apiSuccess (200) {String} rows.state
 * @apiSuccess (200) {Boolean} rows.healthy
 * @apiSuccess (200) {Number} rows.uptimeSeconds
 * @apiSuccess (200) {Number} rows.errorCount
 * @apiSuccess (200) {String} rows.lastKnownResolution
 */
func (h *APIHandler) Streams(c *gin.Context) {
	rows := h.Svc.Snapshots()
	c.IndentedJSON(200, gin.H{
		"total": len(rows),
		"rows":  rows,
	})
}

/**
 * @api {post} /api/v1/stream/stop Stop one publisher
 * @apiGroup stream
 * @apiName StopStream
 * @apiParam {String} name stream name
 * @apiSuccess (200) {String} OK
 */
func (h *APIHandler) StopStream(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		name = c.PostForm("name")
	}
	if name == "" {
		c.AbortWithStatusJSON(400, gin.H{"error": "name is required"})
		return
	}
	if err := h.Svc.StopStream(name); err != nil {
		c.AbortWithStatusJSON(404, gin.H{"error": err.Error()})
		return
	}
	c.IndentedJSON(200, "OK")
}
