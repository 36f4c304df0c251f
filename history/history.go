/*
Package history stores the training log into a SQLite database
*/
package history

import (
	"database/sql"
	_ "github.com/mattn/go-sqlite3"
	"go-ml.dev/pkg/seqclass/model"
	"go-ml.dev/pkg/zorros/zorros"
	"os"
	"path/filepath"
	"sort"
)

// File is the database file name in the logging directory
const File = "history.db"

const schema = `
create table if not exists params (name text primary key, value real);
create table if not exists steps (
	epoch integer, step integer, loss real, learning_rate real);
create table if not exists evals (
	epoch integer primary key, step integer, samples integer,
	train_loss real, train_accuracy real,
	loss real, accuracy real, f1 real, precision real, recall real);
`

/*
Store is the training history database implementing model.Logger
*/
type Store struct {
	db *sql.DB
}

/*
Open opens or creates the history database
*/
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, zorros.Trace(err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, zorros.Wrapf(err, "failed to open history %v: %v", path, err.Error())
	}
	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, zorros.Wrapf(err, "failed to create history tables: %v", err.Error())
	}
	return &Store{db}, nil
}

/*
Reset removes the history of a previous run
*/
func (s *Store) Reset() error {
	for _, t := range []string{"params", "steps", "evals"} {
		if _, err := s.db.Exec("delete from " + t); err != nil {
			return zorros.Trace(err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

/*
Params writes hyper-parameters of the training
*/
func (s *Store) Params(ps map[string]float64) error {
	names := make([]string, 0, len(ps))
	for k := range ps {
		names = append(names, k)
	}
	sort.Strings(names)
	tx, err := s.db.Begin()
	if err != nil {
		return zorros.Trace(err)
	}
	for _, k := range names {
		if _, err = tx.Exec("insert or replace into params (name, value) values (?, ?)", k, ps[k]); err != nil {
			tx.Rollback()
			return zorros.Trace(err)
		}
	}
	if err = tx.Commit(); err != nil {
		return zorros.Trace(err)
	}
	return nil
}

func (s *Store) LogStep(epoch, step int, loss, lr float64) error {
	if _, err := s.db.Exec("insert into steps (epoch, step, loss, learning_rate) values (?, ?, ?, ?)", epoch, step, loss, lr); err != nil {
		return zorros.Trace(err)
	}
	return nil
}

func (s *Store) LogEpoch(e model.Epoch) error {
	if _, err := s.db.Exec(
		`insert or replace into evals
		(epoch, step, samples, train_loss, train_accuracy, loss, accuracy, f1, precision, recall)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Iteration, e.Step, e.Test.Samples, e.Train.Loss, e.Train.Scores[model.Accuracy],
		e.Test.Loss, e.Test.Scores[model.Accuracy], e.Test.Scores[model.F1],
		e.Test.Scores[model.Precision], e.Test.Scores[model.Recall]); err != nil {
		return zorros.Trace(err)
	}
	return nil
}

/*
Step is a logged optimizer step
*/
type Step struct {
	Epoch, Step int
	Loss, LR    float64
}

func (s *Store) Steps() ([]Step, error) {
	rows, err := s.db.Query("select epoch, step, loss, learning_rate from steps order by step")
	if err != nil {
		return nil, zorros.Trace(err)
	}
	defer rows.Close()
	var r []Step
	for rows.Next() {
		x := Step{}
		if err = rows.Scan(&x.Epoch, &x.Step, &x.Loss, &x.LR); err != nil {
			return nil, zorros.Trace(err)
		}
		r = append(r, x)
	}
	if err = rows.Err(); err != nil {
		return nil, zorros.Trace(err)
	}
	return r, nil
}

/*
Epochs reads evaluation results of all logged epochs
*/
func (s *Store) Epochs() ([]model.Epoch, error) {
	rows, err := s.db.Query(
		`select epoch, step, samples, train_loss, train_accuracy, loss, accuracy, f1, precision, recall
		from evals order by epoch`)
	if err != nil {
		return nil, zorros.Trace(err)
	}
	defer rows.Close()
	var r []model.Epoch
	for rows.Next() {
		var trainAcc, acc, f1, prec, rec float64
		e := model.Epoch{}
		if err = rows.Scan(&e.Iteration, &e.Step, &e.Test.Samples, &e.Train.Loss, &trainAcc,
			&e.Test.Loss, &acc, &f1, &prec, &rec); err != nil {
			return nil, zorros.Trace(err)
		}
		e.Train.Scores = model.Scores{model.Accuracy: trainAcc}
		e.Test.Scores = model.Scores{model.Accuracy: acc, model.F1: f1, model.Precision: prec, model.Recall: rec}
		r = append(r, e)
	}
	if err = rows.Err(); err != nil {
		return nil, zorros.Trace(err)
	}
	return r, nil
}

/*
Param reads a logged hyper-parameter
*/
func (s *Store) Param(name string) (float64, bool, error) {
	var v float64
	err := s.db.QueryRow("select value from params where name = ?", name).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, zorros.Trace(err)
	}
	return v, true, nil
}
