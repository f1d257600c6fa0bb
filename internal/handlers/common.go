package handlers

import (
	"context"
	"strconv"
	"sync"

	"osgb/internal/middleware"
	"osgb/internal/services"
	"osgb/pkg/cache"
	"osgb/pkg/logger"
	"osgb/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags used by request models.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		if err := v.RegisterValidation("yearmonth", validateYearMonth); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to register yearmonth validator")
		}
	})
}

func validateYearMonth(fl validator.FieldLevel) bool {
	return services.ValidMonth(fl.Field().String())
}

// handleServiceError maps a service error onto the response envelope.
func handleServiceError(c *gin.Context, err error) {
	msg := services.MessageOf(err)
	switch services.KindOf(err) {
	case services.KindPrecondition:
		response.BadRequest(c, msg)
	case services.KindReferenceViolation:
		response.Unprocessable(c, msg)
	case services.KindPolicyViolation, services.KindConflict:
		response.Conflict(c, msg)
	case services.KindNotFound:
		response.NotFound(c, msg)
	default:
		logger.GetLogger().WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).WithError(err).Error("Request failed")
		response.ServerError(c, "internal server error")
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func authContext(c *gin.Context) services.AuthContext {
	return middleware.GetAuthContext(c)
}

// entityCache is a read-through cache in front of single-entity reads. A nil
// backend disables it; backend errors are logged and treated as misses.
type entityCache struct {
	backend *cache.RedisCache
	log     *logrus.Logger
}

func newEntityCache(backend *cache.RedisCache) *entityCache {
	return &entityCache{backend: backend, log: logger.GetLogger()}
}

func (e *entityCache) get(ctx context.Context, kind string, tenantID, id uint, dest interface{}) bool {
	if e == nil || e.backend == nil {
		return false
	}
	hit, err := e.backend.Get(ctx, kind, tenantID, id, dest)
	if err != nil {
		e.log.WithError(err).WithField("key", e.backend.Key(kind, tenantID, id)).Warn("Cache read failed")
		return false
	}
	return hit
}

func (e *entityCache) set(ctx context.Context, kind string, tenantID, id uint, value interface{}) {
	if e == nil || e.backend == nil {
		return
	}
	if err := e.backend.Set(ctx, kind, tenantID, id, value); err != nil {
		e.log.WithError(err).WithField("key", e.backend.Key(kind, tenantID, id)).Warn("Cache write failed")
	}
}

func (e *entityCache) invalidate(ctx context.Context, kind string, tenantID, id uint) {
	if e == nil || e.backend == nil {
		return
	}
	if err := e.backend.Invalidate(ctx, kind, tenantID, id); err != nil {
		e.log.WithError(err).WithField("key", e.backend.Key(kind, tenantID, id)).Warn("Cache invalidation failed")
	}
}

// invalidateMovements drops the cached accounts a workplace write touched.
func (e *entityCache) invalidateMovements(ctx context.Context, tenantID uint, result *services.TransitionResult) {
	if result == nil {
		return
	}
	for _, m := range result.Movements {
		e.invalidate(ctx, string(m.Role), tenantID, m.PersonnelID)
	}
	if result.Workplace != nil {
		e.invalidate(ctx, cacheKindWorkplace, tenantID, result.Workplace.ID)
	}
}

const cacheKindWorkplace = "workplace"
