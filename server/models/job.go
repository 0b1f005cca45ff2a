package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var ErrDuplicateJob = errors.New("job with the given name already exists in queue")

type Job struct {
	BaseModel
	Fails       int        `json:"fails"`
	MaxFails    int        `json:"max_fails" gorm:"default:1"`
	Name        string     `json:"name" gorm:"index"`
	Handler     string     `json:"handler"`
	Args        string     `json:"args"`
	LastError   string     `json:"last_error"`
	Claimed     bool       `json:"claimed" gorm:"default:false"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
	JobStatusID uint       `json:"job_status_id"`
	JobStatus   *JobStatus `json:"status,omitempty"`
}

// MarkAsClaimed moves the job to 'in-progress', returns false if another worker claimed it first
func (job *Job) MarkAsClaimed() (bool, error) {
	inProgressStatus, err := FindJobStatus(IN_PROGRESS_JOB)
	if err != nil {
		return false, err
	}

	res := db.Model(&Job{}).Where("id = ? AND claimed = ?", job.ID, false).Updates(map[string]interface{}{
		"claimed":       true,
		"job_status_id": inProgressStatus.ID,
	})

	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (job *Job) Update(data map[string]interface{}) error {
	return db.Model(job).Updates(data).Error
}

func UpdateJob(id uint, data map[string]interface{}) error {
	return db.Model(&Job{}).Where("id = ?", id).Updates(data).Error
}

func CreateJob(name, handler, args string, maxFails int) error {
	enqueuedStatus, err := FindJobStatus(ENQUEUED_JOB)
	if err != nil {
		return err
	}

	return db.Create(&Job{
		Name:        name,
		Handler:     handler,
		Args:        args,
		MaxFails:    maxFails,
		EnqueuedAt:  time.Now(),
		JobStatusID: enqueuedStatus.ID,
	}).Error
}

// CreateUniqueJobByName enqueues a job unless a job with the same name
// is already 'enqueued' or 'in-progress', in which case ErrDuplicateJob is returned
func CreateUniqueJobByName(name, handler, args string, maxFails int) error {
	return db.Transaction(func(tx *gorm.DB) error {
		queuedJobStatuses := []JobStatus{}
		err := tx.Where("name IN ?", []string{ENQUEUED_JOB, IN_PROGRESS_JOB}).Find(&queuedJobStatuses).Error
		if err != nil {
			return err
		}

		var enqueuedJobStatus JobStatus
		statusIDs := []uint{}
		for _, jobStatus := range queuedJobStatuses {
			statusIDs = append(statusIDs, jobStatus.ID)
			if jobStatus.Name == ENQUEUED_JOB {
				enqueuedJobStatus = jobStatus
			}
		}

		if enqueuedJobStatus.ID == 0 {
			return errors.New("job statuses have not been seeded")
		}

		var count int64
		err = tx.Model(&Job{}).Where("name = ? AND job_status_id IN ?", name, statusIDs).Count(&count).Error
		if err != nil {
			return err
		}

		if count > 0 {
			return ErrDuplicateJob
		}

		return tx.Create(&Job{
			Name:        name,
			Handler:     handler,
			Args:        args,
			MaxFails:    maxFails,
			EnqueuedAt:  time.Now(),
			JobStatusID: enqueuedJobStatus.ID,
		}).Error
	})
}

// NextJob returns the oldest job with 'status' & 'claimed'
func NextJob(status string, claimed bool) (*Job, error) {
	job := Job{}
	err := db.Joins("INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?", status).
		Where("jobs.claimed = ?", claimed).
		Order("jobs.id asc").
		First(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// LastJobLastUpdated returns the last job of 'status' which was last updated before 'updatedBefore'
func LastJobLastUpdated(updatedBefore time.Time, status string) (*Job, error) {
	jobStatus, err := FindJobStatus(status)
	if err != nil {
		return nil, err
	}

	job := Job{}
	err = db.Where("job_status_id = ? AND updated_at <= ?", jobStatus.ID, updatedBefore).Last(&job).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func FindJob(id uint) (*Job, error) {
	job := Job{}
	err := db.Preload("JobStatus").First(&job, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &job, nil
}

func FetchJobsByStatus(status string, page int) ([]Job, *Paging, error) {
	const JOIN_QUERY = "INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?"

	var total int64
	jobs := []Job{}

	err := db.Joins(JOIN_QUERY, status).Model(&Job{}).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, MAX_PAGE_SIZE)).
		Preload("JobStatus").Order("jobs.id desc").
		Joins(JOIN_QUERY, status).Find(&jobs).Error
	if err != nil {
		return nil, nil, err
	}

	return jobs, newPaging(int64(page), MAX_PAGE_SIZE, total), nil
}

func CurrentJobsStats() (*JobsStats, error) {
	const JOIN_QUERY = "INNER JOIN job_statuses ON job_statuses.id = jobs.job_status_id AND job_statuses.name = ?"
	stats := JobsStats{}

	counts := map[string]*int64{
		ENQUEUED_JOB:    &stats.EnqueuedJobCount,
		IN_PROGRESS_JOB: &stats.InProgressJobCount,
		SUCCESSFUL_JOB:  &stats.SuccessfulJobCount,
		DEAD_JOB:        &stats.DeadJobCount,
	}

	for status, count := range counts {
		err := db.Joins(JOIN_QUERY, status).Model(&Job{}).Count(count).Error
		if err != nil {
			return nil, err
		}
	}

	return &stats, nil
}
