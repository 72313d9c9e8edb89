package tallysync

import (
	"errors"
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/tally_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func resolveCompanyGuid(c *gin.Context) (string, error) {
	guid := strings.TrimSpace(c.Query("company_guid"))
	if guid == "" {
		guid = strings.TrimSpace(c.GetHeader("X-Company-Guid"))
	}
	if err := validate.Var(guid, "required,max=64"); err != nil {
		return "", errors.New("company_guid is required")
	}
	return guid, nil
}

// StartSyncHandler kicks off a manual refresh. A running sync for the same
// company yields 409 immediately rather than queueing; both trigger paths
// answer with the same StartSyncResponse shape.
func StartSyncHandler(coord *Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		companyGuid, err := resolveCompanyGuid(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp, err := coord.StartSync(c.Request.Context(), companyGuid, SyncTriggerManual)
		if err != nil {
			if errors.Is(err, utils.ErrSyncBusy) {
				c.JSON(http.StatusConflict, StartSyncResponse{Accepted: false, Reason: "busy"})
				return
			}
			var cfgErr *utils.ConfigurationError
			if errors.As(err, &cfgErr) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, resp)
	}
}

func ProgressHandler(coord *Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		companyGuid, err := resolveCompanyGuid(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, coord.Progress(companyGuid))
	}
}
