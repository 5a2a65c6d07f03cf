package datastore

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/classroll/rollcall/internal/errors"
	"github.com/classroll/rollcall/internal/logger"
	"github.com/classroll/rollcall/internal/observability/metrics"
)

// AddSubject creates a subject or returns the existing one with the same code.
func (ds *DataStore) AddSubject(ctx context.Context, code, name string) (Subject, error) {
	code, name = strings.TrimSpace(code), strings.TrimSpace(name)
	if code == "" || name == "" {
		return Subject{}, validationError("subject code and name are required", "subject", code)
	}

	subject := Subject{SubjectCode: code, SubjectName: name}
	err := ds.track(metrics.OpCatalog, func() error {
		return ds.transaction(ctx, "add_subject", func(tx *gorm.DB) error {
			return tx.Where(Subject{SubjectCode: code}).
				Attrs(Subject{SubjectName: name}).
				FirstOrCreate(&subject).Error
		})
	})
	return subject, err
}

// AddSection creates a section or returns the existing one with the same name.
func (ds *DataStore) AddSection(ctx context.Context, name string) (Section, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Section{}, validationError("section name is required", "section", name)
	}

	section := Section{SectionName: name}
	err := ds.track(metrics.OpCatalog, func() error {
		return ds.transaction(ctx, "add_section", func(tx *gorm.DB) error {
			return tx.Where(Section{SectionName: name}).FirstOrCreate(&section).Error
		})
	})
	return section, err
}

// OfferClass offers subjectCode to sectionName, creating the class if it
// does not exist yet. teacherID is optional; when set it must be registered.
func (ds *DataStore) OfferClass(ctx context.Context, subjectCode, sectionName string, teacherID *string) (AvailableClass, error) {
	var class AvailableClass

	if teacherID != nil {
		normalized, err := NormalizeID(*teacherID)
		if err != nil {
			return AvailableClass{}, err
		}
		teacherID = &normalized
	}

	err := ds.track(metrics.OpCatalog, func() error {
		return ds.transaction(ctx, "offer_class", func(tx *gorm.DB) error {
			var subject Subject
			if err := tx.Where("subject_code = ?", subjectCode).First(&subject).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return validationError("unknown subject code", "subject_code", subjectCode)
				}
				return err
			}

			var section Section
			if err := tx.Where("section_name = ?", sectionName).First(&section).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return validationError("unknown section", "section_name", sectionName)
				}
				return err
			}

			if teacherID != nil {
				var teachers int64
				if err := tx.Model(&Teacher{}).Where("teacher_id = ?", *teacherID).Count(&teachers).Error; err != nil {
					return err
				}
				if teachers == 0 {
					return notFoundError(ErrUnknownTeacher, "offer_class", "teacher_id", *teacherID)
				}
			}

			err := tx.Where(AvailableClass{SubjectID: subject.ID, SectionID: section.ID}).
				FirstOrCreate(&class).Error
			if err != nil {
				return err
			}
			class.Offered = true
			class.TeacherID = teacherID
			class.Subject = subject
			class.Section = section
			return tx.Model(&class).
				Updates(map[string]any{"offered": true, "teacher_id": teacherID}).Error
		})
	})
	if err != nil {
		return AvailableClass{}, err
	}

	ds.log.Info("class offered",
		logger.String("subject_code", subjectCode),
		logger.String("section", sectionName),
		logger.Uint64("class_id", uint64(class.ID)))
	return class, nil
}

// AddExcuseReason creates an excuse reason or returns the existing one.
func (ds *DataStore) AddExcuseReason(ctx context.Context, reason string) (ExcuseReason, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ExcuseReason{}, validationError("excuse reason is required", "reason", reason)
	}

	record := ExcuseReason{Reason: reason}
	err := ds.track(metrics.OpCatalog, func() error {
		return ds.transaction(ctx, "add_excuse_reason", func(tx *gorm.DB) error {
			return tx.Where(ExcuseReason{Reason: reason}).FirstOrCreate(&record).Error
		})
	})
	return record, err
}

// ListExcuseReasons returns every excuse reason by id.
func (ds *DataStore) ListExcuseReasons(ctx context.Context) ([]ExcuseReason, error) {
	var reasons []ExcuseReason
	err := ds.transaction(ctx, "list_excuse_reasons", func(tx *gorm.DB) error {
		return tx.Order("id").Find(&reasons).Error
	})
	return reasons, err
}
